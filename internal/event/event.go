// Package event models the push events a workflow can react to and the
// trigger-matching rules that decide whether a given push starts a run.
package event

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"stepline/internal/workflow"
)

// Push describes a single push to a repository.
type Push struct {
	// Ref is the full pushed ref, e.g. "refs/heads/main" or
	// "refs/tags/v1.2.0".
	Ref string

	// Before and After are the commit ids on either side of the push.
	// Optional; recorded for reporting only.
	Before string
	After  string

	// RepoPath locates the repository the push happened in. For local
	// runs this is a filesystem path; checkout clones from it.
	RepoPath string
}

// RefKind classifies a pushed ref.
type RefKind int

const (
	RefUnknown RefKind = iota
	RefBranch
	RefTag
)

// SplitRef returns the ref kind and short name.
func SplitRef(ref string) (RefKind, string) {
	switch {
	case strings.HasPrefix(ref, "refs/heads/"):
		return RefBranch, strings.TrimPrefix(ref, "refs/heads/")
	case strings.HasPrefix(ref, "refs/tags/"):
		return RefTag, strings.TrimPrefix(ref, "refs/tags/")
	default:
		return RefUnknown, ref
	}
}

// ShortRef returns the human form of the pushed ref.
func (p Push) ShortRef() string {
	_, short := SplitRef(p.Ref)
	return short
}

// Matches reports whether the push starts a workflow with the given
// triggers.
//
// Rules:
//   - No push trigger: never matches.
//   - Bare push trigger (no filters): every branch or tag push matches.
//   - Branch pushes consult only branch filters; tag pushes only tag
//     filters. A push of one kind against filters declared solely for
//     the other kind does not match.
//   - Ignore filters exclude; include filters, when present, are
//     required.
//   - Non-branch, non-tag refs never match.
func Matches(t workflow.Triggers, p Push) (bool, error) {
	if t.Push == nil {
		return false, nil
	}
	kind, short := SplitRef(p.Ref)

	pf := t.Push
	switch kind {
	case RefBranch:
		return matchFilters(short, pf.Branches, pf.BranchesIgnore, len(pf.Tags) > 0)
	case RefTag:
		return matchFilters(short, pf.Tags, pf.TagsIgnore, len(pf.Branches) > 0)
	default:
		return false, nil
	}
}

// matchFilters applies include/ignore pattern lists to a short ref name.
// otherKindIncluded reports whether the filter declares include patterns
// for the other ref kind only, which scopes the trigger to that kind.
func matchFilters(name string, include, ignore []string, otherKindIncluded bool) (bool, error) {
	for _, pat := range ignore {
		ok, err := matchPattern(pat, name)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	if len(include) == 0 {
		// With no include patterns for this kind, the push matches unless
		// the trigger was narrowed to the other kind.
		return !otherKindIncluded || len(ignore) > 0, nil
	}
	for _, pat := range include {
		ok, err := matchPattern(pat, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchPattern(pattern, name string) (bool, error) {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("ref filter %q: %w", pattern, err)
	}
	return ok, nil
}
