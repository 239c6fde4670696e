package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/penwyp/ivt-split/internal/util"
)

// Destination is where a group's output file goes.
type Destination int

const (
	Primary Destination = iota
	Overflow
)

func (d Destination) String() string {
	switch d {
	case Primary:
		return "primary"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Route decides the destination for a group with the given accumulated cost.
// The boundary is inclusive: cost equal to the limit overflows.
func Route(cost, limit float64) Destination {
	if cost >= limit {
		return Overflow
	}
	return Primary
}

// FormatLimit renders a limit the way it appears in the overflow folder
// name: shortest decimal form with at least one fractional digit, switching
// to exponent form below 1e-4 and from 1e16 on.
// 100 -> "100.0", 12.5 -> "12.5", 1e16 -> "1e+16", 0.00001 -> "1e-05".
func FormatLimit(limit float64) string {
	sci := strconv.FormatFloat(limit, 'e', -1, 64)
	if exp, err := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:]); err == nil && limit != 0 && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(limit, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// OverflowDirName returns the name of the overflow subfolder for a limit.
func OverflowDirName(limit float64) string {
	return fmt.Sprintf("spent_more_then_%s_USD", FormatLimit(limit))
}

// Resolver maps destinations to directories under one output root and
// creates the overflow subfolder the first time it is needed.
type Resolver struct {
	root     string
	limit    float64
	enabled  bool
	overflow string
	created  bool
}

// NewResolver creates a resolver that routes by limit.
func NewResolver(root string, limit float64) *Resolver {
	return &Resolver{
		root:     root,
		limit:    limit,
		enabled:  true,
		overflow: filepath.Join(root, OverflowDirName(limit)),
	}
}

// NewPassthroughResolver creates a resolver that always answers the root.
func NewPassthroughResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Resolve returns the destination and directory for a group cost.
func (r *Resolver) Resolve(cost float64) (Destination, string, error) {
	if !r.enabled {
		return Primary, r.root, nil
	}

	dest := Route(cost, r.limit)
	if dest == Primary {
		return Primary, r.root, nil
	}

	if !r.created {
		if err := os.MkdirAll(r.overflow, 0755); err != nil {
			return dest, "", fmt.Errorf("failed to create overflow folder %s: %w", r.overflow, err)
		}
		r.created = true
		util.LogDebugf("Overflow folder ready: %s", r.overflow)
	}
	return dest, r.overflow, nil
}
