package server

import (
	"fmt"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/rpc/common"
)

func newClientAdapter(m *Member) IRPCServerAdapter {
	return &clientAdapterImpl{member: m}
}

// clientAdapterImpl handles the connection level requests: handshake,
// heartbeat, cluster view and proxy destruction
type clientAdapterImpl struct {
	member *Member
}

func (a *clientAdapterImpl) Handle(req *common.Message) *common.Message {
	c := a.member.cluster

	switch req.MsgType {
	case common.MsgTClientAuthentication:
		if req.Name != c.Name() {
			Logger.Warningf("Rejected client of cluster %q, this is %q", req.Name, c.Name())
			return common.NewErrorResponse(req, errs.Newf(errs.CodeAuthentication, "cluster name %q does not match", req.Name))
		}
		return common.NewAuthenticationResponse(req, a.member.uuid, c.PartitionCount())
	case common.MsgTClientPing:
		return common.NewResponse(req)
	case common.MsgTClientClusterView:
		v := c.view.Load()
		return common.NewClusterView(req, v.version, v.members, v.owners)
	case common.MsgTClientDestroyProxy:
		c.destroyMap(req.Name)
		return common.NewResponse(req)
	default:
		return common.NewErrorResponse(req, errs.New(errs.CodeIllegalArgument,
			fmt.Sprintf("unsupported message type: %s", req.MsgType)))
	}
}
