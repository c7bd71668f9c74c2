// Package rc is the remote controller of in-process test clusters. It
// creates clusters from an xml configuration, starts and stops members and
// ships the identified factory fixture (factory id 66) used by the query
// tests.
//
// Usage Example:
//
//	ctrl := rc.NewController()
//	c, err := ctrl.CreateCluster("", xmlConfig)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	member, err := ctrl.StartMember(c.ID)
//	...
//	defer ctrl.TerminateCluster(c.ID)
package rc
