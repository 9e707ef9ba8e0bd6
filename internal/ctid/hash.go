// Package ctid computes the stable fingerprints the rest of ctd treats as
// identity: file digests, workspace and crate fingerprints, and symbol ids.
// Every hash in this package is BLAKE3. Digests and fingerprints are tagged
// on the wire with a "blake3:" scheme prefix so future hash migrations can
// coexist; symbol ids are bare lowercase hex.
package ctid

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// ToolVersion is folded into every symbol_id so that upgrading the doc
// extractor or the canonical-path/signature rules invalidates old ids
// cleanly instead of silently colliding with stale rows.
const ToolVersion = "ctd-indexer-v1"

const scheme = "blake3:"

// Missing is the sentinel digest for a File whose content can no longer be
// read because the underlying path was deleted but is still referenced by
// a Symbol row.
const Missing = "missing"

func sumHex(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sumHexN(b []byte, n int) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:n])
}

// FileDigest returns the content digest for a source file, in the
// "blake3:<hex>" wire form used for File.digest.
func FileDigest(content []byte) string {
	return scheme + sumHex(content)
}

// WorkspaceFingerprint derives a stable fingerprint from a workspace's
// absolute path. It is stable across daemon restarts and its first 8 hex
// characters are used to build socket/pipe names so that multiple
// workspaces can coexist on one host.
func WorkspaceFingerprint(absPath string) string {
	return scheme + sumHexN([]byte(absPath), 16)
}

// CrateFingerprint derives a Package/Crate fingerprint from its identity
// (name, version, package_id) plus the tool version, so that upgrading
// the extractor invalidates previously-indexed crates.
func CrateFingerprint(name, version, packageID string) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(version))
	_, _ = h.Write([]byte(packageID))
	_, _ = h.Write([]byte(ToolVersion))
	sum := h.Sum(nil)
	return scheme + hex.EncodeToString(sum[:16])
}

// SymbolID computes the 128-bit stable identifier for a Symbol as
// H(tool_fingerprint || canonical_path || kind || file_digest ||
// span_start_le || span_end_le), truncated to 16 bytes and hex-encoded.
//
// The identifier changes if and only if one of its inputs changes: moving
// a function's span (e.g. because earlier code in the file grew) changes
// symbol_id while leaving canonical_path, kind and def_hash untouched,
// which is exactly what lets callers distinguish a "moved" symbol from a
// "renamed" or "resignatured" one.
func SymbolID(canonicalPath, kind, fileDigest string, spanStart, spanEnd uint32) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(ToolVersion))
	_, _ = h.Write([]byte(canonicalPath))
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte(fileDigest))

	var spanBuf [8]byte
	binary.LittleEndian.PutUint32(spanBuf[0:4], spanStart)
	binary.LittleEndian.PutUint32(spanBuf[4:8], spanEnd)
	_, _ = h.Write(spanBuf[:])

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// DefHash is BLAKE3 of the normalized rendered signature, used to detect
// signature-only changes independent of a symbol's span.
func DefHash(signature string) string {
	return scheme + sumHex([]byte(signature))
}
