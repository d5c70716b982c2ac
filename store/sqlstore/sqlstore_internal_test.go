package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLikePrefix(t *testing.T) {
	require.Equal(t, "%", likePrefix(""))
	require.Equal(t, "user:%", likePrefix("user:"))
	require.Equal(t, `a\%b\_c\\%`, likePrefix(`a%b_c\`))
}

func TestBuildQueriesQuotesTable(t *testing.T) {
	q := buildQueries(`"cache"."entries"`)
	require.Contains(t, q.get, `FROM "cache"."entries" WHERE`)
}
