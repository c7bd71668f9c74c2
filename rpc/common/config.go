package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// --------------------------------------------------------------------------
// Socket configuration struct
// --------------------------------------------------------------------------

// SocketConfig holds the TCP options applied to every connection
type SocketConfig struct {
	TCPNoDelay      bool
	ReadBufferSize  int           // 0 keeps the OS default
	WriteBufferSize int           // 0 keeps the OS default
	KeepAlive       time.Duration // 0 disables keep-alive
	LingerSec       int           // negative keeps the OS default
}

// DefaultSocketConfig returns the socket options used when none are given
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		TCPNoDelay:      true,
		ReadBufferSize:  128 * 1024,
		WriteBufferSize: 128 * 1024,
		KeepAlive:       30 * time.Second,
		LingerSec:       -1,
	}
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all parameters of a grid client
type ClientConfig struct {
	// ClusterName must match the name of the cluster the client joins
	ClusterName string
	// Addresses are the member addresses used to bootstrap the cluster view
	Addresses []string

	// Invocation parameters
	InvocationTimeout time.Duration
	RetryCount        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// Connection parameters
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	// SmartRouting sends partition bound requests to the partition owner. If
	// disabled every request goes to any connected member.
	SmartRouting bool
	Socket       SocketConfig

	// IdentifiedFactories are registered with the serialization service of
	// the client, keyed by factory id
	IdentifiedFactories map[int32]serialization.IdentifiedFactory

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns a configuration that connects to a local member
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ClusterName:       "dev",
		Addresses:         []string{"127.0.0.1:5701"},
		InvocationTimeout: 120 * time.Second,
		RetryCount:        10,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2,
		ConnectTimeout:    5 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  60 * time.Second,
		SmartRouting:      true,
		Socket:            DefaultSocketConfig(),
		LogLevel:          "info",
	}
}

// Validate checks the configuration and returns an error with code
// InvalidConfiguration describing the first problem found
func (c *ClientConfig) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errs.Newf(errs.CodeInvalidConfiguration, format, args...)
	}
	switch {
	case c.ClusterName == "":
		return invalid("cluster name must not be empty")
	case len(c.Addresses) == 0:
		return invalid("at least one member address is required")
	case c.InvocationTimeout <= 0:
		return invalid("invocation timeout must be positive, got %s", c.InvocationTimeout)
	case c.RetryCount < 0:
		return invalid("retry count must not be negative, got %d", c.RetryCount)
	case c.InitialBackoff <= 0:
		return invalid("initial backoff must be positive, got %s", c.InitialBackoff)
	case c.MaxBackoff < c.InitialBackoff:
		return invalid("max backoff %s is smaller than the initial backoff %s", c.MaxBackoff, c.InitialBackoff)
	case c.BackoffMultiplier < 1:
		return invalid("backoff multiplier must be at least 1, got %g", c.BackoffMultiplier)
	case c.ConnectTimeout <= 0:
		return invalid("connect timeout must be positive, got %s", c.ConnectTimeout)
	case c.HeartbeatInterval <= 0:
		return invalid("heartbeat interval must be positive, got %s", c.HeartbeatInterval)
	case c.HeartbeatTimeout <= c.HeartbeatInterval:
		return invalid("heartbeat timeout %s must exceed the heartbeat interval %s", c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	for i, addr := range c.Addresses {
		if strings.TrimSpace(addr) == "" {
			return invalid("member address %d is empty", i)
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatHelpers(&sb)

	// General Client Settings
	addSection("Client Configuration")
	addField("Cluster Name", c.ClusterName)
	addField("Smart Routing", strconv.FormatBool(c.SmartRouting))
	addField("Log Level", c.LogLevel)

	// Invocation
	addSection("Invocation")
	addField("Timeout", c.InvocationTimeout.String())
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Backoff", fmt.Sprintf("%s .. %s (x%g)", c.InitialBackoff, c.MaxBackoff, c.BackoffMultiplier))

	// Connections
	addSection("Connections")
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("Heartbeat Interval", c.HeartbeatInterval.String())
	addField("Heartbeat Timeout", c.HeartbeatTimeout.String())
	c.Socket.addFields(addField)

	// Serialization
	if len(c.IdentifiedFactories) > 0 {
		addSection("Identified Factories")
		ids := make([]int, 0, len(c.IdentifiedFactories))
		for id := range c.IdentifiedFactories {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			addField("Factory", strconv.Itoa(id))
		}
	}

	// Addresses
	addSection("Addresses")
	for i, addr := range c.Addresses {
		addField(strconv.Itoa(i), addr)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Member configuration struct
// --------------------------------------------------------------------------

// MemberConfig holds all parameters of an in-process cluster member
type MemberConfig struct {
	ClusterName string
	// Address is the listen address, port 0 picks a free port
	Address        string
	PartitionCount int32

	// Transport parameters
	WorkersPerConn int
	BufferSize     int
	Socket         SocketConfig

	IdentifiedFactories map[int32]serialization.IdentifiedFactory

	// Logging configuration
	LogLevel string
}

// DefaultMemberConfig returns the configuration of a local member
func DefaultMemberConfig() MemberConfig {
	return MemberConfig{
		ClusterName:    "dev",
		Address:        "127.0.0.1:5701",
		PartitionCount: 271,
		WorkersPerConn: 16,
		BufferSize:     64 * 1024,
		Socket:         DefaultSocketConfig(),
		LogLevel:       "info",
	}
}

// Validate checks the member configuration
func (c *MemberConfig) Validate() error {
	switch {
	case c.ClusterName == "":
		return errs.New(errs.CodeInvalidConfiguration, "cluster name must not be empty")
	case c.Address == "":
		return errs.New(errs.CodeInvalidConfiguration, "listen address must not be empty")
	case c.PartitionCount <= 0:
		return errs.Newf(errs.CodeInvalidConfiguration, "partition count must be positive, got %d", c.PartitionCount)
	case c.WorkersPerConn <= 0:
		return errs.Newf(errs.CodeInvalidConfiguration, "workers per connection must be positive, got %d", c.WorkersPerConn)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return errs.Wrap(errs.CodeInvalidConfiguration, err, "log level")
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *MemberConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatHelpers(&sb)

	addSection("Member")
	addField("Cluster Name", c.ClusterName)
	addField("Address", c.Address)
	addField("Partition Count", strconv.Itoa(int(c.PartitionCount)))
	addField("Log Level", c.LogLevel)

	addSection("Transport")
	addField("Workers Per Conn", strconv.Itoa(c.WorkersPerConn))
	addField("Buffer Size", strconv.Itoa(c.BufferSize))
	c.Socket.addFields(addField)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s SocketConfig) addFields(addField func(name, value string)) {
	addField("TCP No Delay", strconv.FormatBool(s.TCPNoDelay))
	addField("Read Buffer", strconv.Itoa(s.ReadBufferSize))
	addField("Write Buffer", strconv.Itoa(s.WriteBufferSize))
	addField("Keep Alive", s.KeepAlive.String())
	addField("Linger", fmt.Sprintf("%d sec", s.LingerSec))
}

// formatHelpers creates the helper functions for consistent formatting
func formatHelpers(sb *strings.Builder) (addSection func(string), addField func(string, string)) {
	addSection = func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField = func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}
