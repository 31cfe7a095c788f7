package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/senselogic/internal/compiler"
)

// LoadMode controls how errors are handled during rule loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading rules from a directory.
type LoadResult struct {
	Rules     []compiler.RuleSpec
	Watches   []compiler.WatchSpec
	CUEValue  cue.Value // The unified CUE value of every file
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during rule loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRules loads and compiles every CUE rule file under dir.
// Files are compiled separately and unified, so a rule may be split
// across files but an id may not be declared twice with conflicting values.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadRules(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	value := ctx.CompileString("{}")
	for _, path := range cueFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
		}
		fileVal := ctx.CompileBytes(data, cue.Filename(path))
		if err := fileVal.Err(); err != nil {
			return nil, []error{cueLoadError(ErrCodeLoadFailed, err)}
		}
		value = value.Unify(fileVal)
	}
	if err := value.Err(); err != nil {
		return nil, []error{cueLoadError(ErrCodeBuildFailed, err)}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	compiled, compileErrs := compiler.Compile(value, mode == LoadModeFailFast)
	result.Rules = compiled.Rules
	result.Watches = compiled.Watches

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
	}

	if len(result.Rules) == 0 && len(result.Watches) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no rules or watches found"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(code string, err error) *LoadError {
	var ce *compiler.CompileError
	if errors.As(compiler.FormatCUEError(err), &ce) {
		return &LoadError{Code: code, Message: ce.Message, Pos: ce.Pos}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDatabase    = "E007" // Database open/query error

	// Declaration errors
	ErrCodeInvalidExpression = "E101" // Rule expression missing or unparsable
	ErrCodeInvalidSensor     = "E102" // Watch sensor missing or unparsable
	ErrCodeInvalidID         = "E103" // Declaration id unusable
	ErrCodeInvalidCUE        = "E104" // CUE type or constraint error
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "expression":
		return ErrCodeInvalidExpression
	case "sensor":
		return ErrCodeInvalidSensor
	case "id":
		return ErrCodeInvalidID
	case "cue":
		return ErrCodeInvalidCUE
	default:
		return ErrCodeGeneric
	}
}
