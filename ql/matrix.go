package ql

import (
	"fmt"
	"io"
)

// Matrix is one page of raster data: rows ordered top to bottom along
// the feed direction, each row packing 8 horizontal pixels per byte,
// MSB leftmost. Row length must equal Model.RowBytes().
type Matrix [][]byte

func (m Matrix) validate(rowBytes int) error {
	for _, row := range m {
		if len(row) != rowBytes {
			return &RowWidthError{Expected: rowBytes, Actual: len(row)}
		}
	}
	return nil
}

// TwoColorMatrix pairs the black and red planes of one page.
// Construct it with NewTwoColorMatrix, which checks the planes agree.
type TwoColorMatrix struct {
	Black, Red Matrix
}

// NewTwoColorMatrix pairs two planes of identical dimensions.
func NewTwoColorMatrix(black, red Matrix) (TwoColorMatrix, error) {
	if len(black) != len(red) {
		return TwoColorMatrix{}, fmt.Errorf(
			"two-color planes differ in row count: %d black, %d red",
			len(black), len(red))
	}
	for i := range black {
		if len(black[i]) != len(red[i]) {
			return TwoColorMatrix{}, fmt.Errorf(
				"two-color planes differ in width at row %d", i)
		}
	}
	return TwoColorMatrix{Black: black, Red: red}, nil
}

// PageSource supplies pages one at a time; the driver never buffers the
// whole job. NextPage returns io.EOF after the last page.
type PageSource interface {
	NextPage() (Matrix, error)
}

// TwoColorPageSource is the PageSource counterpart for black/red jobs.
type TwoColorPageSource interface {
	NextPage() (TwoColorMatrix, error)
}

type slicePages struct {
	pages []Matrix
}

func (s *slicePages) NextPage() (Matrix, error) {
	if len(s.pages) == 0 {
		return nil, io.EOF
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

// Pages adapts an eager slice of matrices to a PageSource.
func Pages(pages ...Matrix) PageSource {
	return &slicePages{pages: pages}
}

type sliceTwoColorPages struct {
	pages []TwoColorMatrix
}

func (s *sliceTwoColorPages) NextPage() (TwoColorMatrix, error) {
	if len(s.pages) == 0 {
		return TwoColorMatrix{}, io.EOF
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

// TwoColorPages adapts an eager slice of two-color matrices.
func TwoColorPages(pages ...TwoColorMatrix) TwoColorPageSource {
	return &sliceTwoColorPages{pages: pages}
}
