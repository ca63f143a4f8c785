package preflight

import (
	"strings"
	"testing"
)

func TestCheck_String(t *testing.T) {
	t.Run("passed_with_required", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   200,
			Passed:   true,
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "200") {
			t.Error("Should contain actual value")
		}
		if !strings.Contains(s, "100") {
			t.Error("Should contain required value")
		}
	})

	t.Run("failed_check", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   50,
			Passed:   false,
		}
		s := c.String()
		if !strings.Contains(s, "✗") {
			t.Error("Failed check should have ✗")
		}
	})

	t.Run("warning_check", func(t *testing.T) {
		c := Check{
			Name:    "test_check",
			Passed:  true,
			Warning: true,
			Message: "warning message",
		}
		s := c.String()
		if !strings.Contains(s, "⚠") {
			t.Error("Warning check should have ⚠")
		}
		if !strings.Contains(s, "warning message") {
			t.Error("Should contain message")
		}
	})

	t.Run("passed_with_message_only", func(t *testing.T) {
		c := Check{
			Name:    "test_check",
			Passed:  true,
			Message: "all good",
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "all good") {
			t.Error("Should contain message")
		}
	})
}

func TestRunAll(t *testing.T) {
	result := RunAll(4)

	if result == nil {
		t.Fatal("RunAll returned nil")
	}
	if len(result.Checks) < 4 {
		t.Errorf("Expected at least 4 checks, got %d", len(result.Checks))
	}

	names := make(map[string]bool)
	for _, check := range result.Checks {
		if check.Name == "" {
			t.Error("Check name should not be empty")
		}
		names[check.Name] = true
	}
	for _, want := range []string{"file_descriptors", "process_limit", "executable", "cpu_headroom", "memory_headroom"} {
		if !names[want] {
			t.Errorf("Expected %s check in results", want)
		}
	}
}

func TestRunAll_HighWorkerCount(t *testing.T) {
	// A very high worker count may trigger warnings but must not panic.
	result := RunAll(10000)

	if result == nil {
		t.Fatal("RunAll returned nil")
	}
	for _, check := range result.Checks {
		if check.Name == "" {
			t.Error("Check name should not be empty")
		}
	}
}

func TestCheckFileDescriptors(t *testing.T) {
	check := checkFileDescriptors(1)

	if check.Name != "file_descriptors" {
		t.Errorf("Name = %q, want file_descriptors", check.Name)
	}
	if check.Actual <= 0 {
		t.Errorf("Actual should be positive: %d", check.Actual)
	}
	if check.Required <= 0 {
		t.Errorf("Required should be positive: %d", check.Required)
	}
}

func TestCheckFileDescriptors_Scaling(t *testing.T) {
	check1 := checkFileDescriptors(1)
	check100 := checkFileDescriptors(100)
	check1000 := checkFileDescriptors(1000)

	if check100.Required <= check1.Required {
		t.Error("Required FDs should increase with more workers")
	}
	if check1000.Required <= check100.Required {
		t.Error("Required FDs should increase with more workers")
	}
}

func TestCheckProcessLimit(t *testing.T) {
	check := checkProcessLimit(4)
	// Either passes with an actual value or is a warning on systems
	// without /proc.
	if !check.Passed && !check.Warning {
		t.Errorf("Process limit should either pass or warn: %s", check.Message)
	}
}

func TestCheckExecutable(t *testing.T) {
	check := checkExecutable()
	if !check.Passed {
		t.Errorf("checkExecutable failed for running test binary: %s", check.Message)
	}
	if check.Message == "" {
		t.Error("Should report the resolved path")
	}
}

func TestCheckCPUHeadroom(t *testing.T) {
	check := checkCPUHeadroom(1)
	if !check.Passed {
		t.Error("CPU headroom should never fail, only warn")
	}

	// With more workers than any machine has CPUs, the check warns.
	check = checkCPUHeadroom(1 << 20)
	if !check.Passed {
		t.Error("CPU headroom should never fail, only warn")
	}
	if !check.Warning {
		t.Errorf("Expected warning for %d workers: %s", 1<<20, check.Message)
	}
}

func TestCheckMemoryHeadroom(t *testing.T) {
	check := checkMemoryHeadroom(1)
	if !check.Passed {
		t.Error("Memory headroom should never fail, only warn")
	}
}

func TestSuggestFix(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"file_descriptors", "ulimit -n"},
		{"process_limit", "ulimit -u"},
		{"executable", "binary"},
		{"unknown", "documentation"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fix := suggestFix(tc.name)
			if !strings.Contains(fix, tc.expected) {
				t.Errorf("suggestFix(%q) = %q, should contain %q", tc.name, fix, tc.expected)
			}
		})
	}
}

func TestResult_Passed(t *testing.T) {
	t.Run("all_pass", func(t *testing.T) {
		result := &Result{
			Checks: []Check{
				{Name: "a", Passed: true},
				{Name: "b", Passed: true},
			},
			Passed: true,
		}
		if !result.Passed {
			t.Error("Result with all passing checks should pass")
		}
	})

	t.Run("one_fail", func(t *testing.T) {
		result := &Result{
			Checks: []Check{
				{Name: "a", Passed: true},
				{Name: "b", Passed: false},
			},
			Passed: false,
		}
		if result.Passed {
			t.Error("Result with one failing check should fail")
		}
	})

	t.Run("warning_only", func(t *testing.T) {
		result := &Result{
			Checks: []Check{
				{Name: "a", Passed: true, Warning: true},
			},
			Passed: true,
		}
		if !result.Passed {
			t.Error("Result with only warnings should pass")
		}
	})
}

// TestPrintResults just verifies no panic - output goes to stdout
func TestPrintResults(t *testing.T) {
	result := &Result{
		Checks: []Check{
			{Name: "test1", Passed: true, Message: "ok"},
			{Name: "test2", Passed: false, Required: 100, Actual: 50},
		},
		Passed: false,
	}

	PrintResults(result)
}
