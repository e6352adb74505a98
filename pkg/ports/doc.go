/*
Package ports defines the driven ports (interfaces) of the flow editor.

These interfaces decouple the editing core from external implementations,
allowing sessions to persist bots in various storage backends.

# Key Interfaces

  - BotRepository: Loads a bot record and saves its conversation graph.
  - BotStore: A BotRepository that also creates, lists and deletes bots.
  - DistributedLocker: Provides distributed locking so one bot is edited by
    one process at a time.

RunBotStoreContract is the shared test suite every adapter runs.
*/
package ports
