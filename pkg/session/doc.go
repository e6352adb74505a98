/*
Package session keeps one editing session per bot.

The Manager opens editor sessions on demand, hands the same *editor.Session
to every caller editing that bot, and closes them (flushing pending saves) on
request or on shutdown. Open and Close on the same bot are serialized with
reference-counted locks, optionally backed by a ports.DistributedLocker so
several replicas do not open the same bot concurrently.
*/
package session
