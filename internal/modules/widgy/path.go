package widgy

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	stepLen  = 4
	pathBase = 36
	maxStep  = pathBase*pathBase*pathBase*pathBase - 1
)

// encodeStep renders a 1-based sibling position as a fixed-width base-36 step.
func encodeStep(pos int) (string, error) {
	if pos < 1 || pos > maxStep {
		return "", fmt.Errorf("path step %d out of range", pos)
	}
	s := strings.ToUpper(strconv.FormatInt(int64(pos), pathBase))
	return strings.Repeat("0", stepLen-len(s)) + s, nil
}

func decodeStep(step string) int {
	v, err := strconv.ParseInt(step, pathBase, 64)
	if err != nil {
		return 0
	}
	return int(v)
}

// lastStep returns the position of the node within its parent.
func lastStep(path string) int {
	if len(path) < stepLen {
		return 0
	}
	return decodeStep(path[len(path)-stepLen:])
}

func parentPath(path string) string {
	if len(path) <= stepLen {
		return ""
	}
	return path[:len(path)-stepLen]
}

func depthOf(path string) int { return len(path) / stepLen }

// ancestorPaths lists the paths of every ancestor, root first.
func ancestorPaths(path string) []string {
	out := make([]string, 0, depthOf(path))
	for end := stepLen; end < len(path); end += stepLen {
		out = append(out, path[:end])
	}
	return out
}

// childPath builds the path of the pos-th child under parent.
func childPath(parent string, pos int) (string, error) {
	step, err := encodeStep(pos)
	if err != nil {
		return "", err
	}
	return parent + step, nil
}

func isDescendantPath(path, of string) bool {
	return len(path) > len(of) && strings.HasPrefix(path, of)
}
