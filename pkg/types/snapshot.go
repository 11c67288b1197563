package types

// StateSnapshot (spectator websocket, one-way):
//   version: number
//   state:
//     phase: "preparation" | "path_modification" | "building" | "combat" |
//            "round_end" | "match_over"
//     round: number
//     seed: number
//     config: { max_rounds, grid_width, grid_height, starting_money,
//               base_hp, path_resolution, combat_time_scale }
//     order: [host_id, client_id]
//     players: { [player_id]: {
//       id, base_hp, money, ready,
//       towers: [{ type, x, y }],
//       route: { points: [{ x, y, round_created, locked }],
//                method, resolution, modified_this_round },
//       research: { [research_type]: true },
//       incoming_mercenaries: [{ type, quantity }],
//       initial_points_placed, last_sync_round,
//     } }
//     outcome: { winner_id, reason } // only once phase is match_over
