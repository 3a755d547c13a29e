// Package report emits the machine-readable result document of a tracker
// command.
package report

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Formats accepted by NewWriter.
const (
	FormatXML = "xml"
)

var (
	// ErrNoOpenElement is returned by CloseElement with nothing open.
	ErrNoOpenElement = errors.New("no open element")
	// ErrUnclosedElements is returned by Close while elements are still open.
	ErrUnclosedElements = errors.New("unclosed elements")
	// ErrWriterClosed is returned by calls after Close.
	ErrWriterClosed = errors.New("writer closed")
)

// IOError wraps a failure to emit part of the document.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("report %s: %v", e.Op, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// Writer emits a tree of named elements.
type Writer interface {
	OpenElement(name string) error
	CloseElement() error
	WriteString(name, value string) error
	WriteInt(name string, value int64) error
	WriteBool(name string, value bool) error
	// Close flushes the document. It fails if elements are still open.
	Close() error
}

// NewWriter returns a Writer for format on w.
func NewWriter(format string, w io.Writer) (Writer, error) {
	switch format {
	case FormatXML:
		return NewXMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (supported: %s)", format, FormatXML)
	}
}

// XMLWriter is a Writer producing indented XML.
type XMLWriter struct {
	out     io.Writer
	enc     *xml.Encoder
	stack   []string
	started bool
	closed  bool
}

// NewXMLWriter returns an XMLWriter on w.
func NewXMLWriter(w io.Writer) *XMLWriter {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &XMLWriter{out: w, enc: enc}
}

func (x *XMLWriter) OpenElement(name string) error {
	if x.closed {
		return ErrWriterClosed
	}
	if !x.started {
		x.started = true
		if _, err := io.WriteString(x.out, xml.Header); err != nil {
			return &IOError{Op: "open " + name, Err: err}
		}
	}
	if err := x.emit("open "+name, xml.StartElement{Name: xml.Name{Local: name}}); err != nil {
		return err
	}
	x.stack = append(x.stack, name)
	return nil
}

func (x *XMLWriter) CloseElement() error {
	if x.closed {
		return ErrWriterClosed
	}
	if len(x.stack) == 0 {
		return ErrNoOpenElement
	}
	name := x.stack[len(x.stack)-1]
	if err := x.emit("close "+name, xml.EndElement{Name: xml.Name{Local: name}}); err != nil {
		return err
	}
	x.stack = x.stack[:len(x.stack)-1]
	return nil
}

func (x *XMLWriter) WriteString(name, value string) error {
	if err := x.OpenElement(name); err != nil {
		return err
	}
	if err := x.emit("write "+name, xml.CharData(value)); err != nil {
		return err
	}
	return x.CloseElement()
}

func (x *XMLWriter) WriteInt(name string, value int64) error {
	return x.WriteString(name, strconv.FormatInt(value, 10))
}

func (x *XMLWriter) WriteBool(name string, value bool) error {
	return x.WriteString(name, strconv.FormatBool(value))
}

func (x *XMLWriter) Close() error {
	if x.closed {
		return ErrWriterClosed
	}
	x.closed = true
	if len(x.stack) > 0 {
		return fmt.Errorf("%w: %v", ErrUnclosedElements, x.stack)
	}
	if err := x.enc.Close(); err != nil {
		return &IOError{Op: "close", Err: err}
	}
	if x.started {
		if _, err := io.WriteString(x.out, "\n"); err != nil {
			return &IOError{Op: "close", Err: err}
		}
	}
	return nil
}

// emit writes one token and flushes so write failures surface at the element
// that caused them.
func (x *XMLWriter) emit(op string, tok xml.Token) error {
	if err := x.enc.EncodeToken(tok); err != nil {
		return &IOError{Op: op, Err: err}
	}
	if err := x.enc.Flush(); err != nil {
		return &IOError{Op: op, Err: err}
	}
	return nil
}
