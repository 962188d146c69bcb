package collector

import (
	"math"
	"testing"

	"github.com/prometheus/procfs"
)

func TestBusyPercent(t *testing.T) {
	tests := []struct {
		name string
		prev procfs.CPUStat
		cur  procfs.CPUStat
		want float64
	}{
		{
			name: "no elapsed time",
			prev: procfs.CPUStat{},
			cur:  procfs.CPUStat{},
			want: 0,
		},
		{
			name: "fully idle interval",
			prev: procfs.CPUStat{Idle: 100},
			cur:  procfs.CPUStat{Idle: 200},
			want: 0,
		},
		{
			name: "fully busy interval",
			prev: procfs.CPUStat{User: 100},
			cur:  procfs.CPUStat{User: 200},
			want: 100,
		},
		{
			name: "half busy interval",
			prev: procfs.CPUStat{User: 100, Idle: 100},
			cur:  procfs.CPUStat{User: 150, Idle: 150},
			want: 50,
		},
		{
			name: "iowait counts as idle",
			prev: procfs.CPUStat{},
			cur:  procfs.CPUStat{User: 25, System: 25, Idle: 25, Iowait: 25},
			want: 50,
		},
		{
			name: "irq and steal count as busy",
			prev: procfs.CPUStat{},
			cur:  procfs.CPUStat{IRQ: 10, SoftIRQ: 10, Steal: 10, Idle: 30},
			want: 50,
		},
		{
			name: "counter reset clamps to zero",
			prev: procfs.CPUStat{User: 500, Idle: 500},
			cur:  procfs.CPUStat{User: 100, Idle: 900},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := busyPercent(tt.prev, tt.cur); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("busyPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}
