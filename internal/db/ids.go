package db

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// AccountIDPrefix is printed on attendee QR badges; scanners match `SP\d+`.
const AccountIDPrefix = "SP"

type AccountIDGenerator struct {
	node *snowflake.Node
}

func NewAccountIDGenerator(nodeID int64) (*AccountIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("creating snowflake node: %w", err)
	}
	return &AccountIDGenerator{node: node}, nil
}

func (g *AccountIDGenerator) Next() string {
	return AccountIDPrefix + g.node.Generate().String()
}
