package streaming

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrMediaNotFound    = errors.New("media not found")
)
