package runner

import (
	"sort"
	"strings"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
)

// computeActionKey implements spec.md §3's ActionKey derivation exactly:
//
//	H( target_id || action_type || sub_id || H(command) || H(sorted env) ||
//	   H(sorted input-content-hashes) || H(sorted declared outputs) ||
//	   H(sorted tool_versions) )
//
// inputHashes must already contain one digest per spec.Inputs entry,
// keyed by input path (the runner computes these via the hasher's
// metadata-memoized HashFile before calling this).
func computeActionKey(spec *pb.ActionSpec, inputHashes map[string]hash.Digest) hash.Digest {
	identity := hash.HashBytes([]byte(spec.GetTargetId() + "\x00" + spec.GetActionType() + "\x00" + spec.GetSubId()))

	command := hash.HashBytes([]byte(strings.Join(spec.GetArgv(), "\x00") + "\x00" + spec.GetWorkingDir()))

	env := hashSortedMap(spec.GetEnv())

	inputs := make([]hash.LabeledDigest, 0, len(spec.GetInputs()))
	for _, in := range spec.GetInputs() {
		inputs = append(inputs, hash.LabeledDigest{Label: in, Digest: inputHashes[in]})
	}
	inputsHash := hash.HashComposite(hash.SortedDigests(inputs)...)

	outs := make([]string, len(spec.GetDeclaredOutputs()))
	copy(outs, spec.GetDeclaredOutputs())
	sort.Strings(outs)
	outputsHash := hash.HashBytes([]byte(strings.Join(outs, "\x00")))

	tools := hashSortedMap(spec.GetToolVersions())

	return hash.HashComposite(
		hash.LabeledDigest{Label: "identity", Digest: identity},
		hash.LabeledDigest{Label: "command", Digest: command},
		hash.LabeledDigest{Label: "env", Digest: env},
		hash.LabeledDigest{Label: "inputs", Digest: inputsHash},
		hash.LabeledDigest{Label: "outputs", Digest: outputsHash},
		hash.LabeledDigest{Label: "tools", Digest: tools},
	)
}

// hashSortedMap hashes a string->string map in canonical (sorted by key)
// order, per spec.md §3's "sorted env" / "sorted tool_versions" wording.
func hashSortedMap(m map[string]string) hash.Digest {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]hash.LabeledDigest, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, hash.LabeledDigest{Label: k, Digest: hash.HashBytes([]byte(m[k]))})
	}
	return hash.HashComposite(parts...)
}
