package database

import (
	"emperror.dev/errors"
	"github.com/bwmarrin/snowflake"
)

func init() {
	// Discord epoch
	snowflake.Epoch = 1420070400000
}

// IDGenerator hands out time-ordered punishment ids.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given node (0-1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create snowflake node %d", nodeID)
	}
	return &IDGenerator{node: node}, nil
}

// Next returns a new id. Ids from one generator strictly increase.
func (g *IDGenerator) Next() string {
	return g.node.Generate().String()
}
