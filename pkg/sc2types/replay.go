// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2types

import "fmt"

// formatReplayName builds "{match_id}_{p1}_vs_{p2}.SC2Replay".
func formatReplayName(matchID uint32, p1, p2 string) string {
	return fmt.Sprintf("%d_%s_vs_%s.SC2Replay", matchID, p1, p2)
}
