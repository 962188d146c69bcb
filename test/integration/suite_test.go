package integration

import (
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// TestIntegration runs the in-process end-to-end suite: real goroutines and
// timers, a scripted CPU source instead of /proc/stat.
func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	_, _ = fmt.Fprintf(GinkgoWriter, "Starting prediction-gate integration suite\n")
	RunSpecs(t, "integration suite")
}
