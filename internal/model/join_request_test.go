package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproveIsIdempotent(t *testing.T) {
	req := &JoinRequest{Requester: "xion1new"}

	assert.True(t, req.Approve("xion1a"))
	assert.False(t, req.Approve("xion1a"))
	assert.Equal(t, []string{"xion1a"}, req.Approvals)
}

func TestVoteSwitchWithdrawsPreviousVote(t *testing.T) {
	req := &JoinRequest{Requester: "xion1new"}

	req.Approve("xion1a")
	assert.True(t, req.Deny("xion1a"))
	assert.Empty(t, req.Approvals)
	assert.Equal(t, []string{"xion1a"}, req.Denials)

	assert.True(t, req.Approve("xion1a"))
	assert.Empty(t, req.Denials)
	assert.Equal(t, []string{"xion1a"}, req.Approvals)
}

func TestVotersAreIndependent(t *testing.T) {
	req := &JoinRequest{Requester: "xion1new"}

	req.Approve("xion1a")
	req.Approve("xion1b")
	req.Deny("xion1c")

	assert.Equal(t, []string{"xion1a", "xion1b"}, req.Approvals)
	assert.Equal(t, []string{"xion1c"}, req.Denials)
	assert.True(t, req.HasApproved("xion1a"))
	assert.False(t, req.HasApproved("xion1c"))
	assert.True(t, req.HasDenied("xion1c"))
}
