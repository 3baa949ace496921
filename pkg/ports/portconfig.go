// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package ports

import "github.com/aiarena/sc2-match-controller/pkg/sc2types"

// NewPortConfig allocates the five mutually distinct ports a match needs:
// shared, server {game, base}, client {game, base}.
func (a *Allocator) NewPortConfig() (*sc2types.PortConfig, error) {
	p, err := a.AllocateN(5)
	if err != nil {
		return nil, err
	}
	pc := &sc2types.PortConfig{
		SharedPort: p[0],
		ServerGame: p[1],
		ServerBase: p[2],
		ClientGame: p[3],
		ClientBase: p[4],
	}
	if !pc.Distinct() {
		// Allocate never returns the same port twice in one call since
		// candidate() always advances past lastUsed, but double-check the
		// invariant spec §3 requires before handing it to a session.
		for _, v := range p {
			a.Release(v)
		}
		return nil, errPortConfigNotDistinct
	}
	return pc, nil
}

var errPortConfigNotDistinct = portConfigError("allocated port config was not pairwise distinct")

type portConfigError string

func (e portConfigError) Error() string { return string(e) }
