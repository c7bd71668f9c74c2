package rc

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// clusterConfig is the parsed xml configuration of a cluster:
//
//	<grid>
//	  <cluster-name>dev</cluster-name>
//	  <properties>
//	    <property name="partition.count">271</property>
//	  </properties>
//	  <network>
//	    <port auto-increment="true">5701</port>
//	  </network>
//	  <serialization>
//	    <data-serializable-factories>
//	      <data-serializable-factory factory-id="66">dgrid.test.IdentifiedFactory</data-serializable-factory>
//	    </data-serializable-factories>
//	  </serialization>
//	</grid>
//
// Every element is optional. Port 0 picks a free port for every member.
type clusterConfig struct {
	ClusterName string        `xml:"cluster-name"`
	Properties  []xmlProperty `xml:"properties>property"`
	Network     struct {
		Port xmlPort `xml:"port"`
	} `xml:"network"`
	Factories []xmlFactory `xml:"serialization>data-serializable-factories>data-serializable-factory"`

	// resolved values
	partitionCount int32
	basePort       int
	autoIncrement  bool
	factories      map[int32]serialization.IdentifiedFactory
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlPort struct {
	AutoIncrement *bool  `xml:"auto-increment,attr"`
	Value         string `xml:",chardata"`
}

type xmlFactory struct {
	ID    int32  `xml:"factory-id,attr"`
	Class string `xml:",chardata"`
}

// parseConfig parses and resolves an xml configuration. Factory class names
// are looked up in classes.
func parseConfig(data string, classes map[string]serialization.IdentifiedFactory) (*clusterConfig, error) {
	c := &clusterConfig{
		partitionCount: DefaultPartitionCount,
		autoIncrement:  true,
		factories:      make(map[int32]serialization.IdentifiedFactory),
	}
	if strings.TrimSpace(data) == "" {
		return c, nil
	}
	if err := xml.Unmarshal([]byte(data), c); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidConfiguration, err, "invalid cluster xml")
	}
	c.ClusterName = strings.TrimSpace(c.ClusterName)

	for _, p := range c.Properties {
		switch p.Name {
		case "partition.count":
			n, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 32)
			if err != nil || n <= 0 {
				return nil, errs.Newf(errs.CodeInvalidConfiguration, "invalid partition count %q", p.Value)
			}
			c.partitionCount = int32(n)
		default:
			Logger.Warningf("Ignoring unknown property %q", p.Name)
		}
	}

	if port := strings.TrimSpace(c.Network.Port.Value); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 {
			return nil, errs.Newf(errs.CodeInvalidConfiguration, "invalid port %q", port)
		}
		c.basePort = n
	}
	if c.Network.Port.AutoIncrement != nil {
		c.autoIncrement = *c.Network.Port.AutoIncrement
	}

	for _, f := range c.Factories {
		class := strings.TrimSpace(f.Class)
		factory, ok := classes[class]
		if !ok {
			return nil, errs.Newf(errs.CodeInvalidConfiguration, "unknown data serializable factory class %q", class)
		}
		c.factories[f.ID] = factory
	}
	return c, nil
}
