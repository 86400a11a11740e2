package monitoring

import (
	"context"
	"fmt"
	"time"
)

// Alert is a firewall or host-intrusion event.
type Alert struct {
	ID          string    `json:"id"`
	Severity    string    `json:"severity,omitempty"`
	Level       int       `json:"level,omitempty"`
	RuleID      int       `json:"rule_id,omitempty"`
	Message     string    `json:"message"`
	SourceIP    string    `json:"source_ip,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	File        string    `json:"file,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	Action      string    `json:"action,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LogEntry is one SIEM log line.
type LogEntry struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemMetrics is a dashboard snapshot.
type SystemMetrics struct {
	CPUUsage          float64   `json:"cpu_usage"`
	MemoryUsage       float64   `json:"memory_usage"`
	DiskUsage         float64   `json:"disk_usage"`
	NetworkIn         float64   `json:"network_in"`
	NetworkOut        float64   `json:"network_out"`
	ActiveConnections int       `json:"active_connections"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
}

// NetworkStatus is a wireless/SD-WAN organization summary.
type NetworkStatus struct {
	Organization  string    `json:"organization"`
	NetworkID     string    `json:"network_id"`
	Status        string    `json:"status"`
	DeviceCount   int       `json:"device_count"`
	ActiveClients int       `json:"active_clients"`
	UploadMbps    float64   `json:"upload_mbps"`
	DownloadMbps  float64   `json:"download_mbps"`
	Alerts        []string  `json:"alerts"`
	Timestamp     time.Time `json:"timestamp"`
}

func paloAltoAlerts(now func() time.Time) func(context.Context, string) (any, error) {
	return func(context.Context, string) (any, error) {
		t := now()
		return []Alert{
			{
				ID:          "PA-2025-001",
				Severity:    "high",
				Message:     "Suspicious outbound connection detected",
				SourceIP:    "192.168.1.105",
				Destination: "suspicious-domain.com",
				Action:      "blocked",
				Timestamp:   t.Add(-15 * time.Minute),
			},
			{
				ID:        "PA-2025-002",
				Severity:  "medium",
				Message:   "Multiple failed login attempts",
				SourceIP:  "10.0.0.45",
				Attempts:  12,
				Action:    "monitored",
				Timestamp: t.Add(-time.Hour),
			},
		}, nil
	}
}

var (
	logLevels  = []string{"INFO", "WARN", "ERROR", "DEBUG"}
	logSources = []string{"web-server", "api-gateway", "database", "auth-service"}
)

func splunkLogs(now func() time.Time, limit int) func(context.Context, string) (any, error) {
	return func(_ context.Context, query string) (any, error) {
		t := now()
		entries := make([]LogEntry, limit)
		for i := range entries {
			entries[i] = LogEntry{
				ID:        fmt.Sprintf("SPL-%04d", i),
				Level:     logLevels[i%len(logLevels)],
				Source:    logSources[i%len(logSources)],
				Message:   fmt.Sprintf("Mock log entry %d: %s", i, query),
				Timestamp: t.Add(-time.Duration(i*5) * time.Minute),
			}
		}
		return entries, nil
	}
}

func grafanaMetrics(now func() time.Time) func(context.Context, string) (any, error) {
	return func(context.Context, string) (any, error) {
		t := now()
		// Values are a pure function of the clock minute.
		m := float64(t.Minute())
		return SystemMetrics{
			CPUUsage:          20 + m,
			MemoryUsage:       40 + m*0.8,
			DiskUsage:         30 + m*0.5,
			NetworkIn:         100 + m*15,
			NetworkOut:        50 + m*12,
			ActiveConnections: 50 + t.Minute()*7,
			Status:            "healthy",
			Timestamp:         t,
		}, nil
	}
}

func wazuhAlerts(now func() time.Time) func(context.Context, string) (any, error) {
	return func(context.Context, string) (any, error) {
		t := now()
		return []Alert{
			{
				ID:        "WZ-2025-101",
				RuleID:    5501,
				Level:     8,
				Message:   "Integrity checksum changed",
				Agent:     "web-server-01",
				File:      "/etc/passwd",
				Timestamp: t.Add(-2 * time.Hour),
			},
			{
				ID:        "WZ-2025-102",
				RuleID:    5402,
				Level:     5,
				Message:   "New file added to monitored directory",
				Agent:     "api-server-02",
				File:      "/var/www/uploads/new_file.php",
				Timestamp: t.Add(-30 * time.Minute),
			},
		}, nil
	}
}

func merakiStatus(now func() time.Time) func(context.Context, string) (any, error) {
	return func(context.Context, string) (any, error) {
		t := now()
		return NetworkStatus{
			Organization:  "Mock Organization",
			NetworkID:     "N_12345678",
			Status:        "online",
			DeviceCount:   15,
			ActiveClients: 42,
			UploadMbps:    10 + float64(t.Second()),
			DownloadMbps:  50 + float64(t.Second())*7,
			Alerts:        []string{"High latency detected on AP-3"},
			Timestamp:     t,
		}, nil
	}
}

// Summary renders a one-line description of data for chat replies.
func Summary(data any) string {
	switch v := data.(type) {
	case []Alert:
		return fmt.Sprintf("Found %d items", len(v))
	case []LogEntry:
		return fmt.Sprintf("Found %d items", len(v))
	case SystemMetrics:
		return "Status: " + v.Status
	case NetworkStatus:
		return "Status: " + v.Status
	default:
		return "Status: available"
	}
}

// DisplayName turns a source id such as palo_alto into "Palo Alto".
func DisplayName(name string) string {
	out := []rune(name)
	upper := true
	for i, r := range out {
		switch {
		case r == '_':
			out[i] = ' '
			upper = true
		case upper && r >= 'a' && r <= 'z':
			out[i] = r - 'a' + 'A'
			upper = false
		default:
			upper = false
		}
	}
	return string(out)
}
