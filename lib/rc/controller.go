package rc

import (
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/serializer"
	"github.com/dgrid/dgrid/rpc/server"
	"github.com/dgrid/dgrid/rpc/transport/tcp"
)

var Logger = logger.GetLogger("rc")

const (
	DefaultPartitionCount int32 = 271
	defaultHost                 = "127.0.0.1"
)

// Cluster describes a cluster created by the controller. Clients join it
// with Name as cluster name.
type Cluster struct {
	ID             string
	Name           string
	PartitionCount int32
}

// Member describes a started member
type Member struct {
	UUID uuid.UUID
	Host string
	Port int
}

// Address returns host:port of the member
func (m Member) Address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

type managedCluster struct {
	info    Cluster
	config  *clusterConfig
	cluster *server.Cluster
	started int // members started so far, used for port auto increment
	members map[uuid.UUID]*server.Member
}

// Controller creates clusters of in-process members and controls their life
// cycle. It is used by tests and by the serve command.
type Controller struct {
	mu       sync.Mutex
	clusters map[string]*managedCluster
	classes  map[string]serialization.IdentifiedFactory
	logLevel string
}

// NewController creates a controller that knows the fixture factory class
func NewController() *Controller {
	return &Controller{
		clusters: make(map[string]*managedCluster),
		classes: map[string]serialization.IdentifiedFactory{
			IdentifiedFactoryClass: IdentifiedFactory,
		},
		logLevel: "info",
	}
}

// RegisterFactoryClass makes an identified factory available to cluster
// configurations under class
func (c *Controller) RegisterFactoryClass(class string, factory serialization.IdentifiedFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[class] = factory
}

// SetLogLevel sets the log level of members started later
func (c *Controller) SetLogLevel(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logLevel = level
}

// CreateCluster creates a cluster without members from an xml
// configuration. The cluster name is the cluster-name of the configuration,
// name if that is empty, or the generated cluster id if both are empty.
func (c *Controller) CreateCluster(name, xmlConfig string) (Cluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, err := parseConfig(xmlConfig, c.classes)
	if err != nil {
		return Cluster{}, err
	}

	info := Cluster{ID: uuid.NewString(), PartitionCount: config.partitionCount}
	switch {
	case config.ClusterName != "":
		info.Name = config.ClusterName
	case name != "":
		info.Name = name
	default:
		info.Name = info.ID
	}

	c.clusters[info.ID] = &managedCluster{
		info:    info,
		config:  config,
		cluster: server.NewCluster(info.Name, info.PartitionCount, nil),
		members: make(map[uuid.UUID]*server.Member),
	}
	Logger.Infof("Created cluster %s (%s) with %d partitions", info.ID, info.Name, info.PartitionCount)
	return info, nil
}

// StartMember starts a new member of a cluster. It returns once the member
// accepts connections.
func (c *Controller) StartMember(clusterID string) (Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, err := c.get(clusterID)
	if err != nil {
		return Member{}, err
	}

	port := mc.config.basePort
	if port != 0 && mc.config.autoIncrement {
		port += mc.started
	}
	config := common.DefaultMemberConfig()
	config.Address = net.JoinHostPort(defaultHost, strconv.Itoa(port))
	config.IdentifiedFactories = mc.config.factories
	config.LogLevel = c.logLevel

	m, err := server.NewMember(config, mc.cluster, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
	if err != nil {
		return Member{}, err
	}
	if err := m.Start(); err != nil {
		return Member{}, err
	}
	mc.started++
	mc.members[m.UUID()] = m

	host, portStr, err := net.SplitHostPort(m.Address())
	if err != nil {
		return Member{}, errs.Wrap(errs.CodeIllegalState, err, "member address")
	}
	p, _ := strconv.Atoi(portStr)
	return Member{UUID: m.UUID(), Host: host, Port: p}, nil
}

// ShutdownMember stops one member. It reports false if the member is not
// running.
func (c *Controller) ShutdownMember(clusterID string, memberID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, err := c.get(clusterID)
	if err != nil {
		return false, err
	}
	m, ok := mc.members[memberID]
	if !ok {
		return false, nil
	}
	delete(mc.members, memberID)
	return m.Shutdown()
}

// ShutdownCluster stops the members one after another in join order and
// forgets the cluster
func (c *Controller) ShutdownCluster(clusterID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, err := c.get(clusterID)
	if err != nil {
		return err
	}
	delete(c.clusters, clusterID)

	var first error
	for _, m := range mc.cluster.Members() {
		if _, err := m.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	Logger.Infof("Cluster %s shut down", clusterID)
	return first
}

// TerminateCluster stops all members at once and forgets the cluster
func (c *Controller) TerminateCluster(clusterID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, err := c.get(clusterID)
	if err != nil {
		return err
	}
	delete(c.clusters, clusterID)

	var g errgroup.Group
	for _, m := range mc.cluster.Members() {
		m := m
		g.Go(func() error {
			_, err := m.Shutdown()
			return err
		})
	}
	Logger.Infof("Cluster %s terminated", clusterID)
	return g.Wait()
}

// Members returns the running members of a cluster in join order
func (c *Controller) Members(clusterID string) ([]Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, err := c.get(clusterID)
	if err != nil {
		return nil, err
	}
	var out []Member
	for _, m := range mc.cluster.Members() {
		host, portStr, _ := net.SplitHostPort(m.Address())
		p, _ := strconv.Atoi(portStr)
		out = append(out, Member{UUID: m.UUID(), Host: host, Port: p})
	}
	return out, nil
}

// Cluster returns the in-process state of a cluster
func (c *Controller) Cluster(clusterID string) (*server.Cluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, err := c.get(clusterID)
	if err != nil {
		return nil, err
	}
	return mc.cluster, nil
}

func (c *Controller) get(clusterID string) (*managedCluster, error) {
	mc, ok := c.clusters[clusterID]
	if !ok {
		return nil, errs.Newf(errs.CodeIllegalArgument, "unknown cluster %q", clusterID)
	}
	return mc, nil
}
