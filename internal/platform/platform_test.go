package platform

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemberStatus_IsStaff(t *testing.T) {
	tests := []struct {
		status MemberStatus
		want   bool
	}{
		{StatusCreator, true},
		{StatusAdministrator, true},
		{StatusMember, false},
		{StatusRestricted, false},
		{StatusLeft, false},
		{StatusKicked, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsStaff())
		})
	}
}

func TestActor_Mention(t *testing.T) {
	a := Actor{ID: 42, DisplayName: "Tom & Jerry"}
	assert.Equal(t, `<a href="tg://user?id=42">Tom &amp; Jerry</a>`, a.Mention())

	anon := Actor{ID: 7}
	assert.Contains(t, anon.Mention(), ">7</a>")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("get chat: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrForbidden))
}

func TestPermissionSets(t *testing.T) {
	assert.True(t, FullPermissions().SendMessages)
	assert.False(t, NoPermissions().SendMessages)
	assert.False(t, FullPermissions().ChangeInfo)
}
