// Package asidecache implements the cache-aside pattern over interchangeable
// byte stores.
//
// A Cache[V] fetches a value by key, or computes it with a caller-supplied
// producer and stores the result under an optional TTL. Values cross the
// store boundary as bytes produced by a pluggable codec.Codec[V].
//
// Components:
//   - store.Store: byte store with TTL and glob key scans (memstore, shardstore,
//     redisstore, sqlstore, nostore).
//   - codec.Codec[V]: (de)serializes V <-> []byte. JSON by default.
//   - resilience.Wrap: retries transient store failures with backoff.
//
// Every blocking operation has a Future-returning Async form. Streams resolve
// a sequence of Items in arrival order:
//
//	for r, err := range c.GetOrComputeStream(ctx, asidecache.Items(m), asidecache.NoExpiry) {
//	    if err != nil {
//	        return err
//	    }
//	    use(r.Key, r.Value)
//	}
//
// With no expiry and a store that implements store.MultiSetter, misses are
// written in batches of Options.BatchSize.
//
// Concurrent misses for one key each run the producer unless
// Options.SingleFlight is set.
package asidecache
