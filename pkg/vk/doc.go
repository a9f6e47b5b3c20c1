// Package vk implements the narrow VK API surface this tool consumes: the
// direct-auth token grant, one paged audio catalog listing, and the profile
// lookup behind the default directory name.
//
// Challenge outcomes of the authorize operation (two-factor, captcha,
// validation, scope denial) are typed errors rather than in-band flow
// control; the authentication state machine in pkg/auth matches on them.
// This is deliberately not a general-purpose VK client.
package vk
