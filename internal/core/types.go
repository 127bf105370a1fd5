package core

import "time"

// ModuleFormat is the module system a resolved module must be loaded as.
type ModuleFormat int

const (
	FormatCJS ModuleFormat = iota
	FormatESM
	FormatJSON
)

func (f ModuleFormat) String() string {
	switch f {
	case FormatESM:
		return "esm"
	case FormatJSON:
		return "json"
	default:
		return "cjs"
	}
}

// ResolveMode distinguishes `import` resolution from `require` resolution;
// spec.md §4.2 gives each its own extension list and condition order.
type ResolveMode int

const (
	ModeRequire ResolveMode = iota
	ModeImport
)

// ResolvedModule is the immutable output of module resolution (spec.md §3).
// Identity for caching purposes is CanonicalPath.
type ResolvedModule struct {
	CanonicalPath string // normalized absolute fs path, or bundle-relative path
	InBundle      bool
	Format        ModuleFormat
}

// PackageInfo is a parsed package.json, cached by RootPath.
type PackageInfo struct {
	RootPath string
	Name     string
	Type     string // "module" | "commonjs" | ""
	Main     string
	Exports  any // json.Unmarshal'd generic value (map/[]any/string), nil if absent
	Imports  any
}

// ResolveError enumerates the typed resolution failures from spec.md §4.2.
type ResolveErrorKind int

const (
	ErrEmptySpecifier ResolveErrorKind = iota
	ErrPackageNotFound
	ErrNoExportMatch
	ErrUnsupportedDirectoryImport
	ErrInvalidExports
)

func (k ResolveErrorKind) String() string {
	switch k {
	case ErrEmptySpecifier:
		return "EmptySpecifier"
	case ErrPackageNotFound:
		return "PackageNotFound"
	case ErrNoExportMatch:
		return "NoExportMatch"
	case ErrUnsupportedDirectoryImport:
		return "UnsupportedDirectoryImport"
	case ErrInvalidExports:
		return "InvalidExports"
	default:
		return "UnknownResolveError"
	}
}

// ResolveError is returned by the resolver for every typed failure mode.
type ResolveError struct {
	Kind      ResolveErrorKind
	Specifier string
	Referrer  string
	Detail    string
}

func (e *ResolveError) Error() string {
	msg := e.Kind.String() + ": " + e.Specifier
	if e.Referrer != "" {
		msg += " (from " + e.Referrer + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// BundleFileEntry describes one file packed into a bundle (spec.md §3/§6).
type BundleFileEntry struct {
	Path   string // bundle-relative, forward-slash, no leading slash
	Offset uint64
	Size   uint64
}

// FsEventKind classifies a file watcher completion (spec.md §4.7).
type FsEventKind int

const (
	FsModified FsEventKind = iota
	FsRenamed
	FsDeleted
)

func (k FsEventKind) String() string {
	switch k {
	case FsModified:
		return "modified"
	case FsRenamed:
		return "renamed"
	case FsDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// HTTPResponse is the shape handed to JS by the Async HTTP component
// (spec.md §4.7): { ok, status, url, error?, data, headers }.
type HTTPResponse struct {
	OK      bool
	Status  int
	URL     string
	Error   string
	Data    []byte
	Headers map[string][]string
}

// TimerKind distinguishes a one-shot setTimeout from a repeating setInterval.
type TimerKind int

const (
	TimerTimeout TimerKind = iota
	TimerInterval
)

// ListenerEntry is one registration in the event-listener table (spec.md §3).
type ListenerEntry struct {
	ID      uint64
	Capture bool
}

// Clock abstracts time.Now/time.Since so scheduler tests can inject a fake
// clock without sleeping; production code uses RealClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock implementation.
var RealClock Clock = realClock{}
