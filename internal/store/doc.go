// Package store holds the latest published sweep and wireless scan records.
// Writers publish complete records; readers always receive copies, so no
// caller can mutate shared state.
package store
