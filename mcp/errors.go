// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoSensitivity reports that a descriptor was built without
// ComputeSensitivity and therefore carries no parameter Jacobian.
var ErrNoSensitivity = errors.New("mcp: descriptor built without parameter jacobian")

// ErrInvalidArgument reports a configuration value outside its allowed range.
type ErrInvalidArgument struct {
	Name    string
	Value   any
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("mcp: invalid argument %s=%v: %s", e.Name, e.Value, e.Message)
}

func invalidArg(name string, value any, message string) error {
	return errors.WithStack(&ErrInvalidArgument{Name: name, Value: value, Message: message})
}
