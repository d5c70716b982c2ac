package main

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/asidecache"
	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/sqlstore"
)

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok, err := a.cache.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				out(cmd, "(nil)")
				return nil
			}
			out(cmd, v)
			return nil
		},
	}
}

func setCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if err := a.cache.Set(cmd.Context(), args[0], args[1], ttl); err != nil {
				return err
			}
			out(cmd, "OK")
			return nil
		},
	}
	c.Flags().Duration("ttl", 0, "lifetime of the entry; 0 never expires")
	return c
}

func msetCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "mset KEY VALUE [KEY VALUE...]",
		Short: "Store several pairs, coalescing writes when the backend allows it",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errors.New("expected KEY VALUE pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			items := make([]asidecache.Item[string], 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				items = append(items, asidecache.Item[string]{Key: args[i], Source: asidecache.Value(args[i+1])})
			}
			if err := a.cache.SetStream(cmd.Context(), asidecache.Pairs(items...), ttl); err != nil {
				return err
			}
			out(cmd, "OK")
			return nil
		},
	}
	c.Flags().Duration("ttl", 0, "lifetime of the entries; 0 never expires")
	return c
}

func mgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mget KEY...",
		Short: "Print the values of several keys in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]asidecache.Item[string], len(args))
			for i, k := range args {
				items[i] = asidecache.Item[string]{Key: k}
			}
			for r, err := range a.cache.GetOrComputeStream(cmd.Context(), asidecache.Pairs(items...), 0) {
				if err != nil {
					return err
				}
				if !r.Found {
					outf(cmd, "%s\t(nil)\n", r.Key)
					continue
				}
				outf(cmd, "%s\t%s\n", r.Key, r.Value)
			}
			return nil
		},
	}
}

func existsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists KEY",
		Short: "Report whether KEY holds a live entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.cache.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out(cmd, ok)
			return nil
		},
	}
}

func ttlCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ttl KEY",
		Short: "Print remaining seconds, or -1 when KEY is absent or never expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := a.cache.TimeToLiveSeconds(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out(cmd, secs)
			return nil
		},
	}
}

func delCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "del KEY...",
		Short: "Remove keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range args {
				if err := a.cache.Remove(cmd.Context(), k); err != nil {
					return fmt.Errorf("del %q: %w", k, err)
				}
			}
			out(cmd, "OK")
			return nil
		},
	}
}

func delPatternCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "del-pattern PATTERN",
		Short: "Remove every key matching a glob (* ? [abc] [^abc])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cache.RemoveByPattern(cmd.Context(), args[0]); err != nil {
				return err
			}
			out(cmd, "OK")
			return nil
		},
	}
}

func keysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [PATTERN]",
		Short: "List live keys matching a glob; default *",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "*"
			if len(args) == 1 {
				p = args[0]
			}
			return printKeys(cmd, a.raw.ScanKeys(cmd.Context(), p))
		},
	}
}

func printKeys(cmd *cobra.Command, keys iter.Seq2[string, error]) error {
	for k, err := range keys {
		if err != nil {
			return err
		}
		out(cmd, k)
	}
	return nil
}

func clearCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to clear without --yes")
			}
			if err := a.cache.Clear(cmd.Context()); err != nil {
				return err
			}
			out(cmd, "OK")
			return nil
		},
	}
	c.Flags().Bool("yes", false, "confirm removal of every entry")
	return c
}

func sweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired entries and print how many were removed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sw, ok := a.raw.(store.Sweeper)
			if !ok {
				return errors.ErrUnsupported
			}
			n, err := sw.Sweep(cmd.Context())
			if errors.Is(err, errors.ErrUnsupported) {
				return fmt.Errorf("backend %q expires entries on its own", a.v.GetString("backend"))
			}
			if err != nil {
				return err
			}
			out(cmd, n)
			return nil
		},
	}
}

func pingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the backend connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.ping != nil {
				if err := a.ping(cmd.Context()); err != nil {
					return err
				}
			} else if _, err := a.raw.Exists(cmd.Context(), "cachectl:ping"); err != nil {
				return err
			}
			out(cmd, "PONG")
			return nil
		},
	}
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the cache table (postgres backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.pool == nil {
				return fmt.Errorf("migrate needs the postgres backend, got %q", a.v.GetString("backend"))
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			if err := sqlstore.Migrate(cmd.Context(), a.pool, a.sqlCfg.MigrationsTable, log); err != nil {
				return err
			}
			out(cmd, "OK")
			return nil
		},
	}
}

func out(cmd *cobra.Command, v any) {
	fmt.Fprintln(cmd.OutOrStdout(), v)
}

func outf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
