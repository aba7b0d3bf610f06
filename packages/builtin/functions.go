package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
)

// Func computes a value from the colon-separated arguments of a placeholder.
type Func func(args []string) (string, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

type Option func(*Registry)

// WithClock replaces time.Now for the time-based functions.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = r.funcNow
	r.funcs["timestamp"] = r.funcTimestamp
	r.funcs["timestampMs"] = r.funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["randomAlphanumeric"] = funcRandomAlphanumeric
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["env"] = funcEnv
	r.funcs["expr"] = r.funcExpr
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names lists the registered function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Call runs the function name with a raw argument string such as
// "5:10". The expr function receives its whole argument unsplit.
func (r *Registry) Call(name, rawArgs string) (string, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return "", fmt.Errorf("unknown function %q", name)
	}
	return fn(SplitArgs(name, rawArgs))
}

// SplitArgs splits a raw argument string on colons. Functions whose single
// argument may itself contain colons (expr, base64, urlEncode, ...) get it
// whole.
func SplitArgs(name, rawArgs string) []string {
	rawArgs = strings.TrimPrefix(strings.TrimSpace(rawArgs), ":")
	if rawArgs == "" {
		return nil
	}
	switch name {
	case "expr", "base64", "base64Decode", "md5", "sha256", "urlEncode", "urlDecode", "now":
		return []string{rawArgs}
	}
	args := strings.Split(rawArgs, ":")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return args
}

func (r *Registry) funcNow(args []string) (string, error) {
	format := time.RFC3339
	if len(args) >= 1 {
		format = args[0]
	}
	return r.now().UTC().Format(format), nil
}

func (r *Registry) funcTimestamp(_ []string) (string, error) {
	return strconv.FormatInt(r.now().Unix(), 10), nil
}

func (r *Registry) funcTimestampMs(_ []string) (string, error) {
	return strconv.FormatInt(r.now().UnixMilli(), 10), nil
}

func funcUUID(_ []string) (string, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []string) (string, error) {
	min, max := 0, 100
	if len(args) >= 2 {
		var err error
		if min, err = strconv.Atoi(args[0]); err != nil {
			return "", fmt.Errorf("random: min argument %q is not a valid integer", args[0])
		}
		if max, err = strconv.Atoi(args[1]); err != nil {
			return "", fmt.Errorf("random: max argument %q is not a valid integer", args[1])
		}
	}
	if max < min {
		return "", fmt.Errorf("random: max %d is lower than min %d", max, min)
	}
	return strconv.Itoa(rand.Intn(max-min+1) + min), nil
}

func lengthArg(name string, args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: length argument %q is not a valid integer", name, args[0])
	}
	return v, nil
}

func funcRandomString(args []string) (string, error) {
	length, err := lengthArg("randomString", args, 16)
	if err != nil {
		return "", err
	}
	return RandomString(length, Alphanumeric), nil
}

func funcRandomEmail(_ []string) (string, error) {
	user := RandomString(8, lowercase)
	domain := RandomString(6, lowercase)
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func funcRandomAlphanumeric(args []string) (string, error) {
	length, err := lengthArg("randomAlphanumeric", args, 8)
	if err != nil {
		return "", err
	}
	return RandomString(length, Alphanumeric), nil
}

func funcBase64(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcBase64Decode(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return "", fmt.Errorf("base64Decode: %w", err)
	}
	return string(decoded), nil
}

func funcMD5(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := md5.Sum([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcSHA256(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcURLEncode(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}

func funcURLDecode(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	decoded, err := url.QueryUnescape(args[0])
	if err != nil {
		return args[0], nil
	}
	return decoded, nil
}

func funcEnv(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("env: variable name is required")
	}
	if v, ok := os.LookupEnv(args[0]); ok {
		return v, nil
	}
	if len(args) >= 2 {
		return args[1], nil
	}
	return "", fmt.Errorf("env: variable %s is not set", args[0])
}

// funcExpr evaluates an expr-lang expression. The environment exposes the
// process environment as env and the current time as now.
func (r *Registry) funcExpr(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("expr: expression is required")
	}
	env := map[string]any{
		"env": environ(),
		"now": r.now(),
	}
	program, err := expr.Compile(args[0], expr.Env(env))
	if err != nil {
		return "", fmt.Errorf("compile expression %q: %w", args[0], err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return "", fmt.Errorf("eval expression %q: %w", args[0], err)
	}
	if output == nil {
		return "", nil
	}
	return fmt.Sprint(output), nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

const (
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
	Alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func RandomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
