package main

import (
	"bufio"
	"io"
	"math"
	"os"
)

// openInput opens path for reading, treating "-" as stdin. The returned close
// function is always safe to call, even for stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// eachLine calls fn with the text of every line read from r.
func eachLine(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func expF(logp float32) float64 {
	return math.Exp(float64(logp))
}
