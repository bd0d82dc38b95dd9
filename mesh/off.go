package mesh

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ReadOFF reads a mesh in the Object File Format. Polygons with more than three vertices are
// split in triangle fans.
func ReadOFF(r io.Reader) (*Mesh, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	next := func() ([]string, error) {
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if i := strings.IndexByte(line, '#'); i >= 0 {
				line = line[:i]
			}
			if fields := strings.Fields(line); len(fields) > 0 {
				return fields, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "could not read OFF")
		}
		return nil, io.ErrUnexpectedEOF
	}

	fields, err := next()
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(fields[0], "OFF") {
		return nil, errors.Errorf("line %d: missing OFF header", lineNo)
	}
	if fields = fields[1:]; len(fields) == 0 {
		if fields, err = next(); err != nil {
			return nil, err
		}
	}
	if len(fields) < 2 {
		return nil, errors.Errorf("line %d: expected vertex and face counts", lineNo)
	}
	nv, err1 := strconv.Atoi(fields[0])
	nf, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || nv < 0 || nf < 0 {
		return nil, errors.Errorf("line %d: invalid counts %q", lineNo, strings.Join(fields, " "))
	}

	vertices := make([]r3.Vector, nv)
	for i := range vertices {
		if fields, err = next(); err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
		if len(fields) < 3 {
			return nil, errors.Errorf("line %d: expected 3 coordinates", lineNo)
		}
		var xyz [3]float64
		for k := range xyz {
			if xyz[k], err = strconv.ParseFloat(fields[k], 64); err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
		}
		vertices[i] = r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	}

	faces := make([][3]int, 0, nf)
	for i := 0; i < nf; i++ {
		if fields, err = next(); err != nil {
			return nil, errors.Wrapf(err, "face %d", i)
		}
		k, err := strconv.Atoi(fields[0])
		if err != nil || k < 3 || len(fields) < k+1 {
			return nil, errors.Errorf("line %d: invalid face", lineNo)
		}
		idx := make([]int, k)
		for j := range idx {
			if idx[j], err = strconv.Atoi(fields[j+1]); err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
		}
		for j := 1; j+1 < k; j++ {
			faces = append(faces, [3]int{idx[0], idx[j], idx[j+1]})
		}
	}
	return New(vertices, faces)
}
