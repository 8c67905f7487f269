// Package hass encodes the panel's Home Assistant messages: the retained
// device discovery document and the JSON sensor payload.
package hass
