// Package errcode defines the fixed set of failure kinds surfaced by rasterman.
package errcode

import (
	"errors"
	"fmt"
)

type Code int

const (
	ProcessOK Code = iota
	InputFileError
	InputFileTransformError
	OutputFileMissing
	OutputFileError
	OutputNoDataError
	OutputFileExtError
	OutputUnhandledDriver
	CellSizeError
	LeftError
	TopError
	RowsError
	ColsError
	NoOperationSpecified
	MissingArgument
	VectorLayerNotFound
	VectorFieldNotValid
	OtherError
)

var codeText = map[Code]string{
	ProcessOK:               "process completed successfully.",
	InputFileError:          "input file error.",
	InputFileTransformError: "input raster map projection error.",
	OutputFileMissing:       "output raster file is missing or cannot be found.",
	OutputFileError:         "output file error",
	OutputNoDataError:       "NoData error on output raster",
	OutputFileExtError:      "Output raster file extension error.",
	OutputUnhandledDriver:   "Unhandled output raster type.",
	CellSizeError:           "Cell size error.",
	LeftError:               "Invalid raster left coordinate.",
	TopError:                "Invalid raster top coordinate.",
	RowsError:               "Invalid raster number of rows.",
	ColsError:               "Invalid raster number of columns.",
	NoOperationSpecified:    "No operation specified.",
	MissingArgument:         "Missing argument",
	VectorLayerNotFound:     "Vector layer not found.",
	VectorFieldNotValid:     "Vector field type not valid.",
	OtherError:              "Unspecified error.",
}

var codeName = map[Code]string{
	ProcessOK:               "ok",
	InputFileError:          "input_file",
	InputFileTransformError: "input_transform",
	OutputFileMissing:       "output_missing",
	OutputFileError:         "output_file",
	OutputNoDataError:       "output_nodata",
	OutputFileExtError:      "output_ext",
	OutputUnhandledDriver:   "output_driver",
	CellSizeError:           "cell_size",
	LeftError:               "left",
	TopError:                "top",
	RowsError:               "rows",
	ColsError:               "cols",
	NoOperationSpecified:    "no_operation",
	MissingArgument:         "missing_argument",
	VectorLayerNotFound:     "vector_layer",
	VectorFieldNotValid:     "vector_field",
	OtherError:              "other",
}

// Name is a short label for c, used in metrics.
func (c Code) Name() string {
	if s, ok := codeName[c]; ok {
		return s
	}
	return "other"
}

func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown return code %d", int(c))
}

// ExitCode is the process exit status reported by the CLI for c.
func (c Code) ExitCode() int {
	if _, ok := codeText[c]; !ok {
		return int(OtherError)
	}
	return int(c)
}

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so callers can test with
// errors.Is(err, errcode.New(errcode.RowsError, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, ProcessOK for a
// nil error and OtherError for anything else.
func CodeOf(err error) Code {
	if err == nil {
		return ProcessOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return OtherError
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
