// Package auth owns user accounts and the bearer sessions issued for them.
//
// Passwords are hashed with Argon2id and stored as PHC strings. Sessions are
// stateless HS256 JWTs whose subject is the decimal account id; the gateway
// treats that subject as the owner id for every device operation.
//
// The Service is the only writer of the users table. Deleting an account
// cascades to the devices it owns.
package auth
