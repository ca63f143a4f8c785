// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for launching a group of workers.
func RunAll(workers int) *Result {
	result := &Result{
		Checks: make([]Check, 0, 5),
		Passed: true,
	}

	fdCheck := checkFileDescriptors(workers)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	procCheck := checkProcessLimit(workers)
	result.Checks = append(result.Checks, procCheck)
	if !procCheck.Passed {
		result.Passed = false
	}

	exeCheck := checkExecutable()
	result.Checks = append(result.Checks, exeCheck)
	if !exeCheck.Passed {
		result.Passed = false
	}

	// CPU and memory headroom are warnings only: oversubscription is
	// legal, just slow.
	result.Checks = append(result.Checks, checkCPUHeadroom(workers))
	result.Checks = append(result.Checks, checkMemoryHeadroom(workers))

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(workers int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Each worker needs stdio pipes, the shared result pipe, and a
	// coordination socket; plus launcher overhead.
	required := workers*8 + 64
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d workers)", actual, required, workers),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(workers int) Check {
	required := workers + 50

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	// Parse "Max processes" line
	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// checkExecutable verifies the current binary can be resolved for
// re-execution.
func checkExecutable() Check {
	exe, err := os.Executable()
	if err != nil {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: fmt.Sprintf("cannot resolve own binary: %v", err),
		}
	}
	if _, err := os.Stat(exe); err != nil {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: fmt.Sprintf("binary not accessible at %s: %v", exe, err),
		}
	}
	return Check{
		Name:    "executable",
		Passed:  true,
		Message: exe,
	}
}

// checkCPUHeadroom warns when the group oversubscribes the machine.
func checkCPUHeadroom(workers int) Check {
	counts, err := cpu.Counts(true)
	if err != nil || counts == 0 {
		return Check{
			Name:    "cpu_headroom",
			Passed:  true,
			Warning: true,
			Message: "unable to determine CPU count",
		}
	}
	return Check{
		Name:     "cpu_headroom",
		Required: workers,
		Actual:   counts,
		Passed:   true,
		Warning:  counts < workers,
		Message:  fmt.Sprintf("%d logical CPUs for %d workers", counts, workers),
	}
}

// checkMemoryHeadroom warns when available memory per worker looks tight.
func checkMemoryHeadroom(workers int) Check {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Check{
			Name:    "memory_headroom",
			Passed:  true,
			Warning: true,
			Message: "unable to determine memory",
		}
	}

	// 256 MiB per worker is a floor, not a sizing estimate.
	const perWorker = 256 << 20
	required := uint64(workers) * perWorker

	return Check{
		Name:    "memory_headroom",
		Passed:  true,
		Warning: vm.Available < required,
		Message: fmt.Sprintf("%d MiB available for %d workers (recommend %d MiB)",
			vm.Available>>20, workers, required>>20),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "executable":
		return "run from an installed binary, not a deleted or replaced file"
	default:
		return "see documentation"
	}
}
