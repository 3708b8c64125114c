// Package hostlist loads a flat, one-host-per-line target list. Real
// host-set construction (resource manager queries, cluster group files,
// inventory services) is explicitly out of scope (spec.md's Non-goals);
// this is the minimal "external collaborator" a runnable CLI still needs,
// grounded on the teacher's mesos.go only insofar as it shows a host list
// is handed to the scheduler as a plain []string, not how that list gets
// built in a full mesos deployment.
package hostlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads one host per line from path, skipping blank lines and lines
// beginning with '#'.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open host file %s: %w", path, err)
	}
	defer f.Close()

	var hosts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read host file %s: %w", path, err)
	}
	return hosts, nil
}

// Merge combines an explicit host list (e.g. -w on the command line) with
// one loaded from a file, de-duplicating while preserving first-seen order.
func Merge(explicit, fromFile []string) []string {
	seen := make(map[string]bool, len(explicit)+len(fromFile))
	var out []string
	for _, h := range append(append([]string{}, explicit...), fromFile...) {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
