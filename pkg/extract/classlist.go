package extract

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ClassList is the allow-list of class names to extract. Duplicate lines in
// the input collapse silently.
type ClassList map[string]struct{}

// ReadClassList loads a newline-separated UTF-8 file of class names.
// Blank lines are ignored and surrounding whitespace is stripped.
func ReadClassList(path string) (ClassList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class list: %w", err)
	}
	defer f.Close()

	list := make(ClassList)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			continue
		}
		list[name] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class list: %w", err)
	}
	return list, nil
}

// Contains reports whether name is on the list.
func (l ClassList) Contains(name string) bool {
	_, ok := l[name]
	return ok
}

// Names returns the listed names in unspecified order.
func (l ClassList) Names() []string {
	names := make([]string, 0, len(l))
	for n := range l {
		names = append(names, n)
	}
	return names
}
