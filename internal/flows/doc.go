// Package flows holds the orchestration behind each Engine operation.
//
// RunLogin, RunRefresh, RunRegister and RunValidate take a dependency struct
// of funcs and return a classified result. The Engine turns that result into
// metrics, audit events and the public error; flows never see those.
//
// This package must not import identityauth, and it keeps no state between
// calls.
package flows
