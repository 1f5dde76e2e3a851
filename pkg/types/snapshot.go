package types

// StateSnapshot (pushed after every change, and once on attach):
//   version: number
//   room_id: string
//   snapshot:
//     seat: 0 | 1
//     players: { id, display_name, is_host }[]
//     shared: { turn_count, current_player_id, turn_started_at,
//               turn_time_limit_ms, is_game_active, config? }
//     battlefield:
//       viewer: 0 | 1
//       lanes: { lane, near: Card|null, far: Card|null }[5]  // near is always yours
//       near_base, far_base: { hp, max_hp }
//     player_state: your own hand/coins/energy, never the opponent's
//     current_player_id: string
//     is_my_turn: boolean
//     turn_remaining_ms: number
//     battle?: last BattleReport { turn, lanes: LaneResult[], bases?: BaseResult[] }
//
// Card:
//   id, type ("unit" | "skull"), name?, owner_seat, attack, hp, max_hp,
//   category?, affinities?: { strong_against[], weak_against[] },
//   is_skull, destroyed, last_damage_turn
