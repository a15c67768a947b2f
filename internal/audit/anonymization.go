package audit

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// IPRetention is how long full client IP addresses are kept in audit records.
const IPRetention = 90 * 24 * time.Hour

// AnonymizeIP zeroes the host part of an address: the last octet of IPv4 and the
// last 80 bits of IPv6. Invalid input yields "".
func AnonymizeIP(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		out := make(net.IP, len(v4))
		copy(out, v4)
		out[3] = 0
		return out.String()
	}
	out := make(net.IP, net.IPv6len)
	copy(out, ip.To16())
	for i := 6; i < net.IPv6len; i++ {
		out[i] = 0
	}
	return out.String()
}

// AnonymizationJob truncates client IPs of records older than Retention.
type AnonymizationJob struct {
	Repository Repository
	Logger     *slog.Logger
	Retention  time.Duration
	Now        func() time.Time
}

// Run anonymizes eligible records and returns how many were changed.
func (j *AnonymizationJob) Run(ctx context.Context) (int, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := j.Retention
	if retention <= 0 {
		retention = IPRetention
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	cutoff := now().UTC().Add(-retention)
	n, err := j.Repository.AnonymizeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logger.InfoContext(ctx, "audit IP anonymization finished", "cutoff", cutoff, "anonymized", n)
	return n, nil
}
