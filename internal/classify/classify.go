// Package classify implements the Value Classifier (spec §4.3): a pure
// function from a literal string or number to the Instruction argument used
// by LOAD_CONST. Mirrors the layered regex-table style of the teacher's
// internal/redact package, generalized from "looks like a secret" to the
// closed category family the scanner's classifier was trained against.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/scanforge/sourceguard/internal/instr"
)

// Config tunes the two thresholds the spec leaves open (§4.3, §9 Open
// Questions): where verbatim emission ends and where "very large" begins.
type Config struct {
	ShortLiteralThreshold int   // default 15
	LargeIntegerThreshold int64 // default 1<<53, matching float64 exact-integer range
}

func DefaultConfig() Config {
	return Config{ShortLiteralThreshold: 15, LargeIntegerThreshold: 1 << 53}
}

// String classifies a string literal into the LOAD_CONST argument the
// compiler should emit. Structural categories are checked first and win
// regardless of length (spec §4.3: "checked before size bucketing"); only
// once none match does the short-literal/size-bucket rule apply.
func String(cfg Config, raw string) instr.Arg {
	if cat, ok := structuralCategory(raw); ok {
		return instr.CategoryArg(cat)
	}
	if len(raw) < cfg.ShortLiteralThreshold {
		return instr.StringArg(strings.ToLower(raw))
	}
	return instr.CategoryArg(sizeBucket(len(raw)))
}

// Integer classifies an integer literal (spec §4.3, rule 6: numeric literals
// are always bucketed, never emitted verbatim — confirmed against the
// reference implementation's LOAD_CONST rendering of int/float/bool args).
func Integer(cfg Config, v int64) instr.Arg {
	if v < 0 {
		v = -v
	}
	if v > cfg.LargeIntegerThreshold {
		return instr.CategoryArg("INTEGER_LARGE")
	}
	return instr.CategoryArg("INTEGER")
}

func Float(float64) instr.Arg { return instr.CategoryArg("FLOAT") }
func Boolean(bool) instr.Arg  { return instr.CategoryArg("BOOLEAN") }

func sizeBucket(n int) string {
	switch {
	case n < 5:
		return "STRING_XS"
	case n <= 15:
		return "STRING_S"
	case n <= 127:
		return "STRING_M"
	case n <= 4095:
		return "STRING_L"
	default:
		return "STRING_XL"
	}
}

var (
	versionRe  = regexp.MustCompile(`^v?\d+\.\d+(\.\d+)*([-+][0-9A-Za-z.]+)?$`)
	schemeRe   = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*)://`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	ipv4Re     = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	hexRe      = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{8,}$`)
	base64Re   = regexp.MustCompile(`^[A-Za-z0-9+/_-]{16,}={0,2}$`)
	sqlRe      = regexp.MustCompile(`(?i)\b(select|insert\s+into|update|delete\s+from|drop\s+table|union\s+select)\b.*\b(from|where|values|set)\b`)
	bashVerbRe = regexp.MustCompile(`^\s*(sudo\s+)?(rm|curl|wget|chmod|chown|bash|sh|nc|dd|mkfs|sh -c|eval|kill|ps|wget|scp|ssh)\b`)
	pathRe     = regexp.MustCompile(`^(\.{0,2}/|~/|[A-Za-z]:\\)`)
)

var insecureSchemes = map[string]bool{
	"http": true, "ftp": true, "telnet": true, "ldap": true, "gopher": true,
}

var bareProtocolTokens = map[string]bool{
	"http": true, "ftp": true, "telnet": true, "ldap": true, "gopher": true,
	"smtp": true, "pop3": true, "imap": true,
}

// structuralCategory checks, in the normative order of spec §4.3, whether
// raw matches a security-relevant structure. The first match wins; a dotted
// quad that is a valid IPv4 address is not taken as a version, so it reaches
// the STRING_IP check.
func structuralCategory(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)

	if versionRe.MatchString(trimmed) && strings.Contains(trimmed, ".") &&
		!(ipv4Re.MatchString(trimmed) && validIPv4Octets(trimmed)) {
		return "STRING_VERSION", true
	}
	if m := schemeRe.FindStringSubmatch(trimmed); m != nil {
		scheme := strings.ToLower(m[1])
		if insecureSchemes[scheme] {
			return "STRING_URL_INSECURE", true
		}
		return "STRING_URL", true
	}
	if bareProtocolTokens[strings.ToLower(trimmed)] {
		return "STRING_INSECURE_PROTOCOL", true
	}
	if emailRe.MatchString(trimmed) {
		return "STRING_EMAIL", true
	}
	if ipv4Re.MatchString(trimmed) && validIPv4Octets(trimmed) {
		return "STRING_IP", true
	}
	if pathRe.MatchString(trimmed) && len(trimmed) >= 2 {
		return "STRING_PATH", true
	}
	if looksLikeBase64(trimmed) {
		return "STRING_BASE64", true
	}
	if len(trimmed) >= 8 && hexRe.MatchString(trimmed) {
		return "STRING_HEX", true
	}
	if looksLikeBash(trimmed) {
		return "STRING_BASH", true
	}
	if sqlRe.MatchString(trimmed) {
		return "STRING_SQL", true
	}
	if looksLikeCode(trimmed) {
		return "STRING_CODE", true
	}
	return "", false
}

func validIPv4Octets(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// looksLikeBase64 applies a character-set + length heuristic (spec §4.3,
// §9 Open Questions: thresholds are deliberately not pinned to one source
// revision, only required to be deterministic).
func looksLikeBase64(s string) bool {
	if !base64Re.MatchString(s) {
		return false
	}
	if len(s)%4 != 0 {
		return false
	}
	return true
}

// looksLikeBash requires both a shell-verb prefix and a clean parse under
// mvdan.cc/sh/v3/syntax, reusing the same shell-parsing library the
// teacher's structural analyzer uses to build its ParsedCommand AST — here
// narrowed to a yes/no validity check on one literal.
func looksLikeBash(s string) bool {
	if !bashVerbRe.MatchString(s) {
		return false
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	_, err := parser.Parse(strings.NewReader(s), "")
	return err == nil
}

var codeIndicatorRe = regexp.MustCompile(`(function\s*\(|def\s+\w+\s*\(|=>|;\s*$|^\s*(if|for|while)\s*\()`)

// looksLikeCode is a code-likeness heuristic: structural keywords/operators
// plus either multi-line layout or a trailing statement terminator.
func looksLikeCode(s string) bool {
	if !codeIndicatorRe.MatchString(s) {
		return false
	}
	return strings.Contains(s, "\n") || strings.Contains(s, "{") || strings.Contains(s, ";")
}
