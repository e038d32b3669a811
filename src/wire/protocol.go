// Package wire implements the line-oriented wire protocol multiplexed by
// the Dispatcher over a single TCP connection: one request in, one reply
// out, connection closed. Every request/reply grammar here matches
// spec.md §4.3/§6 exactly, including the PROPAGATE loop-prevention
// convention and the underscore form of GET_ALL (never "GET ALL").
package wire

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/ritikchawla/peerkv/src/kv"
	"github.com/ritikchawla/peerkv/src/merkle"
)

// Command names recognised on the wire.
const (
	CmdGet           = "GET"
	CmdSet           = "SET"
	CmdDel           = "DEL"
	CmdPropagate     = "PROPAGATE"
	CmdGetAll        = "GET_ALL"
	CmdGetMerkleRoot = "GET_MERKLE_ROOT"
	CmdGetPaths      = "GET_PATHS"
	CmdGetTS         = "GET_TS" // additive per SPEC_FULL.md §11 decision 1
)

// Reply strings fixed by spec.md §4.3.
const (
	ReplyOK              = "OK"
	ReplyStaleSet        = "ERROR: Outdated timestamp"
	ReplyStaleDel        = "ERROR: Key not found or outdated timestamp"
	ReplyInvalidCommand  = "Invalid command"
	ReplyEmptyMerkleRoot = "EMPTY"
)

// ErrInvalidCommand is returned by ParseRequest for any request that does
// not match one of the recognised commands or carries the wrong number
// of arguments for its command.
var ErrInvalidCommand = errors.New("wire: invalid command")

// Request is a parsed inbound request, covering every command in the
// wire grammar.
type Request struct {
	Command     string
	Propagated  bool
	Key         string
	Value       string
	Timestamp   uint64
	RequestKeys []string // GET_PATHS only
}

// ParseRequest parses one whitespace-tokenised request line. A PROPAGATE
// prefix is stripped and recorded on Propagated; the underlying action
// (SET or DEL) is parsed exactly as if it had arrived unprefixed, but
// with its timestamp taken from the wire instead of minted locally.
func ParseRequest(raw string) (*Request, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, ErrInvalidCommand
	}

	req := &Request{}
	action := fields[0]
	rest := fields[1:]
	if action == CmdPropagate {
		if len(rest) == 0 {
			return nil, ErrInvalidCommand
		}
		req.Propagated = true
		action = rest[0]
		rest = rest[1:]
	}
	req.Command = action

	switch action {
	case CmdGet, CmdGetTS:
		if len(rest) != 1 {
			return nil, ErrInvalidCommand
		}
		if action == CmdGet && rest[0] == "ALL" {
			// The two-token "GET ALL" is rejected as a malformed GET rather
			// than read as a lookup of the key "ALL".
			return nil, ErrInvalidCommand
		}
		req.Key = rest[0]
	case CmdDel:
		if req.Propagated {
			if len(rest) != 3 {
				return nil, ErrInvalidCommand
			}
			req.Key, req.Value = rest[0], rest[1]
			ts, err := strconv.ParseUint(rest[2], 10, 64)
			if err != nil {
				return nil, ErrInvalidCommand
			}
			req.Timestamp = ts
		} else {
			if len(rest) != 1 {
				return nil, ErrInvalidCommand
			}
			req.Key = rest[0]
		}
	case CmdSet:
		if req.Propagated {
			if len(rest) != 3 {
				return nil, ErrInvalidCommand
			}
			req.Key, req.Value = rest[0], rest[1]
			ts, err := strconv.ParseUint(rest[2], 10, 64)
			if err != nil {
				return nil, ErrInvalidCommand
			}
			req.Timestamp = ts
		} else {
			if len(rest) != 2 {
				return nil, ErrInvalidCommand
			}
			req.Key, req.Value = rest[0], rest[1]
		}
	case CmdGetAll, CmdGetMerkleRoot:
		if len(rest) != 0 {
			return nil, ErrInvalidCommand
		}
	case CmdGetPaths:
		if len(rest) != 1 {
			return nil, ErrInvalidCommand
		}
		req.RequestKeys = ParseKeyList(rest[0])
	default:
		return nil, ErrInvalidCommand
	}
	return req, nil
}

// FormatPropagateSet renders the PROPAGATE SET command eagerly pushed to
// the peer on an accepted client SET.
func FormatPropagateSet(key, value string, timestamp uint64) string {
	return CmdPropagate + " " + CmdSet + " " + key + " " + value + " " + strconv.FormatUint(timestamp, 10)
}

// delPlaceholder fills the value slot PROPAGATE DEL's grammar reserves
// for symmetry with PROPAGATE SET. A client DEL carries no value, so
// FormatPropagateDel cannot forward one; an empty field would collapse
// under strings.Fields on the receiving end and leave only 2 "rest"
// tokens where the propagated-DEL branch requires exactly 3. The
// placeholder is ignored by the receiving Del.
const delPlaceholder = "-"

// FormatPropagateDel renders the PROPAGATE DEL command eagerly pushed to
// the peer on an accepted client DEL.
func FormatPropagateDel(key string, timestamp uint64) string {
	return CmdPropagate + " " + CmdDel + " " + key + " " + delPlaceholder + " " + strconv.FormatUint(timestamp, 10)
}

// FormatGet renders a plain GET request.
func FormatGet(key string) string { return CmdGet + " " + key }

// FormatGetTS renders a GET_TS request.
func FormatGetTS(key string) string { return CmdGetTS + " " + key }

// ParseKeyList splits a GET_PATHS-style "k1;k2;;k3;" argument on ';',
// ignoring empty segments (in particular the trailing one after the
// final ';').
func ParseKeyList(arg string) []string {
	parts := strings.Split(arg, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FormatKeyList renders keys as "k1;k2;k3;" (trailing ';' after the last
// entry, empty string for no keys).
func FormatKeyList(keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(';')
	}
	return b.String()
}

// EncodeGetAll renders the GET_ALL reply grammar:
// (key ":" decimal_ts ";")* with no leading whitespace and a trailing
// ';' after the last entry; the empty string for an empty store.
func EncodeGetAll(kts []kv.KeyTimestamp) string {
	var b strings.Builder
	for _, kt := range kts {
		b.WriteString(kt.Key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(kt.Timestamp, 10))
		b.WriteByte(';')
	}
	return b.String()
}

// ParseGetAll parses a GET_ALL reply into (key, timestamp) pairs.
// Malformed segments (missing ':' or a non-numeric timestamp) are
// skipped rather than failing the whole parse, matching the forgiving
// segment-at-a-time parsing of the reference implementation.
func ParseGetAll(reply string) []kv.KeyTimestamp {
	var out []kv.KeyTimestamp
	for _, seg := range strings.Split(reply, ";") {
		if seg == "" {
			continue
		}
		sep := strings.IndexByte(seg, ':')
		if sep < 0 {
			continue
		}
		ts, err := strconv.ParseUint(seg[sep+1:], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, kv.KeyTimestamp{Key: seg[:sep], Timestamp: ts})
	}
	return out
}

// EncodeGetTS renders the GET_TS reply: "value:timestamp", or the empty
// string when the key is absent. Additive per SPEC_FULL.md §11 decision
// 1, used only by the Reconciler's targeted-pull path (spec.md §4.5
// step 6) so it can apply the peer's original timestamp instead of
// re-minting one locally.
func EncodeGetTS(value string, timestamp uint64, present bool) string {
	if !present {
		return ""
	}
	return value + ":" + strconv.FormatUint(timestamp, 10)
}

// ParseGetTS parses a GET_TS reply.
func ParseGetTS(reply string) (value string, timestamp uint64, present bool, err error) {
	if reply == "" {
		return "", 0, false, nil
	}
	sep := strings.LastIndexByte(reply, ':')
	if sep < 0 {
		return "", 0, false, ErrInvalidCommand
	}
	ts, parseErr := strconv.ParseUint(reply[sep+1:], 10, 64)
	if parseErr != nil {
		return "", 0, false, ErrInvalidCommand
	}
	return reply[:sep], ts, true, nil
}

// EncodeMerkleRoot renders the GET_MERKLE_ROOT reply: "EMPTY" when the
// index is empty, otherwise 64 lowercase hex characters.
func EncodeMerkleRoot(idx merkle.IndexInterface) string {
	if idx.Empty() {
		return ReplyEmptyMerkleRoot
	}
	return idx.Root().String()
}

// ParseMerkleRoot parses a GET_MERKLE_ROOT reply, reporting empty=true
// for the literal "EMPTY" string and for the all-zeros hex root alike
// (spec.md §6: both trigger the full-pull fallback).
func ParseMerkleRoot(reply string) (root merkle.Hash, empty bool, err error) {
	if reply == ReplyEmptyMerkleRoot {
		return merkle.Hash{}, true, nil
	}
	h, decodeErr := merkle.HashFromHex(reply)
	if decodeErr != nil {
		return merkle.Hash{}, false, decodeErr
	}
	return h, h.IsZero(), nil
}

// EncodeGetPathsReply renders the GET_PATHS reply grammar:
// (key "," hex_path ";")* for keys present locally.
func EncodeGetPathsReply(kps []merkle.KeyPath) string {
	var b strings.Builder
	for _, kp := range kps {
		b.WriteString(kp.Key)
		b.WriteByte(',')
		b.WriteString(hex.EncodeToString(kp.Path.Marshal()))
		b.WriteByte(';')
	}
	return b.String()
}

// GetPathsEntry is one decoded (key, path) pair from a GET_PATHS reply.
type GetPathsEntry struct {
	Key  string
	Path *merkle.Path
}

// ParseGetPathsReply parses a GET_PATHS reply. A segment whose hex path
// fails to decode is skipped; callers that need to detect a wholesale
// malformed reply should check ok.
func ParseGetPathsReply(reply string) (entries []GetPathsEntry, ok bool) {
	ok = true
	for _, seg := range strings.Split(reply, ";") {
		if seg == "" {
			continue
		}
		comma := strings.IndexByte(seg, ',')
		if comma < 0 {
			ok = false
			continue
		}
		key := seg[:comma]
		raw, err := hex.DecodeString(seg[comma+1:])
		if err != nil {
			ok = false
			continue
		}
		path, err := merkle.UnmarshalPath(raw)
		if err != nil {
			ok = false
			continue
		}
		entries = append(entries, GetPathsEntry{Key: key, Path: path})
	}
	return entries, ok
}
