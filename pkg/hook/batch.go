package hook

import "os"

// batchFiles partitions files so every invocation's argv stays within the
// platform limit. prefixLen is the byte length of the fixed argv; the
// environment is not charged here. Each file costs its length plus a
// separator and terminator. The union of batches is exactly the input, in order.
func batchFiles(files []string, prefixLen int) [][]string {
	if len(files) == 0 {
		return nil
	}

	limit := maxCommandLength()
	budget := limit - prefixLen - reservedArgvSlack
	if budget < 1 {
		budget = 1
	}

	var batches [][]string
	var current []string
	used := 0
	for _, f := range files {
		cost := len(f) + 2
		if used+cost > budget && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, f)
		used += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// reservedArgvSlack leaves headroom for the interpreter rewriting its own
// argv and for NUL terminators the kernel accounts per argument.
const reservedArgvSlack = 2048

// environSize is counted against the limit on platforms where argv and
// environment share one budget.
func environSize() int {
	n := 0
	for _, e := range os.Environ() {
		n += len(e) + 1
	}
	return n
}
