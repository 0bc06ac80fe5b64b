// Package fingerprint computes stable cache keys for queries.
//
// A fingerprint is a domain-separated SHA-256 over the canonical encoding
// of everything that decides a query's result: operation, table, selected
// fields, where criteria, sort criteria, bounds and the can-execute flag.
// Equal inputs always give equal keys, across processes and Go versions.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/viggyfresh/prom/internal/criteria"
)

// DomainQuery separates query fingerprints from any other hash in the
// same key space.
const DomainQuery = "prom/query/v1"

// Compute returns the fingerprint of running op against table with set.
// It fails with ErrUnsupportedValue when a criterion holds a value with no
// canonical form; such queries cannot be cached.
func Compute(op, table string, set *criteria.Set) (string, error) {
	doc, err := document(op, table, set)
	if err != nil {
		return "", err
	}
	data, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", op, err)
	}
	return hashWithDomain(DomainQuery, data), nil
}

func document(op, table string, set *criteria.Set) (map[string]any, error) {
	if set == nil {
		return nil, fmt.Errorf("fingerprint %s: nil criteria", op)
	}

	fields := make([]any, len(set.Fields))
	for i, f := range set.Fields {
		fields[i] = []any{f.Name, f.Value}
	}

	where := make([]any, len(set.Where))
	for i, c := range set.Where {
		options := make(map[string]any, len(c.Options))
		for k, v := range c.Options {
			options[k] = v
		}
		where[i] = map[string]any{
			"verb":    string(c.Verb),
			"field":   c.Field,
			"value":   c.Value,
			"values":  c.Values,
			"options": options,
		}
	}

	sorts := make([]any, len(set.Sort))
	for i, sc := range set.Sort {
		sorts[i] = map[string]any{
			"dir":   int(sc.Direction),
			"field": sc.Field,
			"order": sc.Order,
		}
	}

	limit, offset, _ := set.GetBounds()
	return map[string]any{
		"op":      op,
		"table":   table,
		"fields":  fields,
		"where":   where,
		"sort":    sorts,
		"bounds":  []any{limit, offset},
		"execute": set.CanExecute(),
	}, nil
}

// hashWithDomain computes sha256(domain || 0x00 || data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
