// Copyright 2014 Dirk Pranke. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pyn

import "golang.org/x/sync/errgroup"

// A jobRequest is one command dispatched to a pool worker.
type jobRequest struct {
	nodeName string
	desc     string
	command  string
	dryRun   bool
}

// A jobResult is the single message a worker sends back when its command
// finishes.
type jobResult struct {
	nodeName string
	desc     string
	command  string
	exit     int
	stdout   string
	stderr   string
}

// A Pool runs command invocations on a fixed number of workers. The
// dispatcher sends requests with Send, collects results with Get, and
// tears the pool down with Close then Join. Workers get only the call
// function, never the host itself.
type Pool struct {
	requests  chan jobRequest
	responses chan jobResult
	eg        errgroup.Group
}

func NewPool(workers int, call func(cmd string) (int, string, string)) *Pool {
	p := &Pool{
		requests:  make(chan jobRequest, workers),
		responses: make(chan jobResult, workers),
	}
	for i := 0; i < workers; i++ {
		p.eg.Go(func() error {
			for req := range p.requests {
				res := jobResult{
					nodeName: req.nodeName,
					desc:     req.desc,
					command:  req.command,
				}
				if !req.dryRun {
					res.exit, res.stdout, res.stderr = call(req.command)
				}
				p.responses <- res
			}
			return nil
		})
	}
	return p
}

func (p *Pool) Send(req jobRequest) {
	p.requests <- req
}

// Get returns a completed job. When block is false and nothing has
// finished, it returns immediately with ok == false.
func (p *Pool) Get(block bool) (jobResult, bool) {
	if block {
		res := <-p.responses
		return res, true
	}
	select {
	case res := <-p.responses:
		return res, true
	default:
		return jobResult{}, false
	}
}

// Close stops accepting work; workers exit once the queue drains.
func (p *Pool) Close() {
	close(p.requests)
}

// Join waits for every worker to exit. All results must have been
// collected first.
func (p *Pool) Join() {
	p.eg.Wait()
}
