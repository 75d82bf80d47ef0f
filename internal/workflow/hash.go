package workflow

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
)

// Hash is the deterministic identity of a workflow definition.
//
// It is computed solely from definition content, independent of map
// iteration order or the order keys appear in the source document.
type Hash string

func (h Hash) String() string { return string(h) }

// ComputeHash derives the canonical sha256 identity of the definition.
//
// Framing: every field is written length-prefixed so that adjacent
// values can never collide by concatenation. Maps are serialized in
// sorted key order; job ids likewise.
func ComputeHash(w *Workflow) Hash {
	h := sha256.New()

	writeString(h, w.Name)
	writeTriggers(h, w.On)
	writeStringMap(h, w.Env)

	ids := sortedJobIDs(w)
	writeString(h, strconv.Itoa(len(ids)))
	for _, id := range ids {
		writeString(h, id)
		writeJob(h, w.Jobs[id])
	}

	return Hash(hexSum(h))
}

func writeJob(h hash.Hash, j Job) {
	writeString(h, j.Name)
	writeString(h, j.RunsOn)
	writeStringSlice(h, j.Needs)
	writeStringMap(h, j.Env)
	writeString(h, j.Defaults.Run.Shell)
	writeString(h, j.Defaults.Run.WorkingDirectory)
	writeString(h, strconv.Itoa(j.TimeoutMinutes))
	writeString(h, strconv.Itoa(len(j.Steps)))
	for _, s := range j.Steps {
		writeStep(h, s)
	}
}

func writeStep(h hash.Hash, s Step) {
	writeString(h, s.ID)
	writeString(h, s.Name)
	writeString(h, s.Uses)
	writeStringMap(h, s.With)
	writeString(h, s.Run)
	writeString(h, s.Shell)
	writeString(h, s.WorkingDirectory)
	writeStringMap(h, s.Env)
	if s.ContinueOnError {
		writeString(h, "continue-on-error")
	} else {
		writeString(h, "")
	}
	writeString(h, strconv.Itoa(s.TimeoutMinutes))
}

func writeTriggers(h hash.Hash, t Triggers) {
	if t.Push == nil {
		writeString(h, "")
	} else {
		writeString(h, "push")
		writeStringSlice(h, t.Push.Branches)
		writeStringSlice(h, t.Push.BranchesIgnore)
		writeStringSlice(h, t.Push.Tags)
		writeStringSlice(h, t.Push.TagsIgnore)
	}
	if t.WorkflowDispatch != nil {
		writeString(h, "workflow_dispatch")
	} else {
		writeString(h, "")
	}
}

func writeStringSlice(h hash.Hash, values []string) {
	writeString(h, strconv.Itoa(len(values)))
	for _, v := range values {
		writeString(h, v)
	}
}

func writeStringMap(h hash.Hash, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeString(h, strconv.Itoa(len(keys)))
	for _, k := range keys {
		writeString(h, k)
		writeString(h, m[k])
	}
}

func writeString(h hash.Hash, s string) {
	var frame [8]byte
	binary.BigEndian.PutUint64(frame[:], uint64(len(s)))
	h.Write(frame[:])
	h.Write([]byte(s))
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
