// Package expiration turns relative TTLs into absolute deadlines and decides
// whether a stored deadline has passed.
//
// A zero deadline means the entry never expires. Stores that keep their own
// expiry bookkeeping (the in-process stores) consult a Policy on every read;
// stores with a native TTL feature only use Deadline/Remaining for reporting.
package expiration
