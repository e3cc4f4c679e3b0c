//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package errors

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	entcfg "github.com/weaviate/nativeindex/entities/config"
	"golang.org/x/sync/errgroup"
)

// ErrorGroupWrapper is an errgroup.Group whose goroutines recover from
// panics. A recovered panic is logged and becomes the error of its
// goroutine, so it cancels the group context like any other error.
type ErrorGroupWrapper struct {
	*errgroup.Group
	logger    logrus.FieldLogger
	Variables []interface{}
}

// NewErrorGroupWithContextWrapper creates a new ErrorGroupWrapper bound to
// ctx, see errgroup.WithContext.
func NewErrorGroupWithContextWrapper(logger logrus.FieldLogger, ctx context.Context,
	vars ...interface{},
) (*ErrorGroupWrapper, context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	return &ErrorGroupWrapper{
		Group:     eg,
		logger:    logger,
		Variables: vars,
	}, ctx
}

// Go overrides the Go method to add panic recovery logic.
func (egw *ErrorGroupWrapper) Go(f func() error, localVars ...interface{}) {
	egw.Group.Go(func() (err error) {
		if !entcfg.Enabled(os.Getenv("DISABLE_RECOVERY_ON_PANIC")) {
			defer func() {
				if r := recover(); r != nil {
					egw.logger.WithField("action", "error_group_recover").
						WithField("local_vars", localVars).
						WithField("vars", egw.Variables).
						Errorf("Recovered from panic: %v", r)
					debug.PrintStack()
					err = fmt.Errorf("panic occurred: %v", r)
				}
			}()
		}
		return f()
	})
}
