package network

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadEdgeList builds a Graph from whitespace separated "a b" pairs, one per
// line. A line with a single id adds an isolated node. Blank lines and lines
// starting with '#' are skipped; any trailing fields (weights, attributes)
// are ignored.
func ReadEdgeList(r io.Reader) (*Graph, error) {
	g := New()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		a, err := parseID(fields[0])
		if err != nil {
			return nil, errors.Wrapf(ErrBadEdgeList, "line %d: %v", lineNo, err)
		}
		if len(fields) == 1 {
			g.AddNode(a)
			continue
		}
		b, err := parseID(fields[1])
		if err != nil {
			return nil, errors.Wrapf(ErrBadEdgeList, "line %d: %v", lineNo, err)
		}
		g.AddEdge(a, b)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read edge list")
	}
	return g, nil
}

// WriteEdgeList writes every edge once, in node order, in the format read by
// ReadEdgeList. Isolated nodes are written on their own line.
func WriteEdgeList(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	seen := make(map[NodeID]struct{}, g.Len())
	for _, a := range g.Nodes() {
		nbrs := g.Neighbors(a)
		if len(nbrs) == 0 {
			if _, err := bw.WriteString(strconv.FormatInt(int64(a), 10) + "\n"); err != nil {
				return err
			}
		}
		for _, b := range nbrs {
			if _, done := seen[b]; done {
				continue
			}
			if _, err := bw.WriteString(strconv.FormatInt(int64(a), 10) + " " + strconv.FormatInt(int64(b), 10) + "\n"); err != nil {
				return err
			}
		}
		seen[a] = struct{}{}
	}
	return bw.Flush()
}

func parseID(s string) (NodeID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return NodeID(v), nil
}
