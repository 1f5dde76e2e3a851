package types

// Client -> Server
// Connect: GET /ws?player=<id>&name=<display name>
//   a missing player id gets a fresh uuid; a second connection for the same
//   player replaces the first and receives that player's room snapshots.
//
// Enqueue:
//   name?: string
//
// CancelQueue: {}
//
// PlaceCard:
//   card: Card          // id optional, generated server-side when absent
//   lane: 0..4
//   slot?: "near"       // "far" is rejected with foreign_slot
//
// EndTurn: {}
//
// Status: {}
//
// SyncState:
//   player_state: { hand, coins, energy, selected_card_id, selected_lane, extra }
//
// Leave: {}
//
// Rejoin:
//   room_id: string     // take back a seat left by a dropped connection
//
// Closing the socket counts as CancelQueue followed by Leave.

// Server -> Client
// Waiting: {}
// Matched:
//   room_id, opponent_id, opponent_name: string
//   is_host: boolean   // the host takes the first turn
// QueueExpired: {}     // waited longer than QUEUE_TTL
// QueueCancelled:
//   removed: boolean
// PlaceResult:
//   room_id, card, lane, battlefield (viewer-relative)
// EndTurnResult:
//   advanced: boolean  // false when this end was already counted
//   turn_count, shared, battlefield, battle?
// Status:
//   exists: boolean, snapshot?
// StateSynced:
//   shared, player_state
// Left: room_id
// Rejoined: room_id    // followed by a StateSnapshot
// Error:
//   code: "room_not_found" | "not_in_room" | "not_current_turn" | "invalid_lane"
//       | "game_not_started" | "foreign_slot" | "missing_card" | "room_full"
//       | "in_other_room"
//       | "bad_json" | "unknown_type" | "timeout" | "unavailable" | "internal"
//   error: string
