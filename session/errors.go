/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "errors"

var (
	ErrUnsupportedLocale = errors.New("unsupported locale")
	ErrRegistrationPush  = errors.New("failed to push initial state")
	ErrDecode            = errors.New("invalid request")
)
