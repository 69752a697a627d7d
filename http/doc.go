// SPDX-License-Identifier: Apache-2.0

/*
Package http provides SPNEGO (Negotiate) enabled HTTP client and server
implementations supporting RFC 4559.

	import (
		net/http
		spnego "github.com/golang-auth/go-spnego"
		ghttp "github.com/golang-auth/go-spnego/http"
		"github.com/golang-auth/go-spnego/krb5"
	)

# Clients and transorts

Create a client to use a default Negotiate enabled transport. The client can be
used anywhere a standard [http.Client] can be used.  The transport needs a
fresh [spnego.Initiator] for each request:

	newInitiator := func() (spnego.Initiator, error) {
		return krb5.NewInitiatorFromCCache()
	}

	client, err := ghttp.NewClient(newInitiator, nil)
	...

	resp, err := client.Get("https://example.com")
	...

	req, err := http.NewRequest("GET", "http://example.com", nil)
	...
	req.Header.Add("If-None-Match", `W/"wyzzy"`)
	resp, err := client.Do(req)
	...

To control Negotiate parameters, create a transport:

	transport, err := ghttp.NewTransport(
		newInitiator,
		ghttp.WithInitiatorOpportunistic(),
		ghttp.WithInitiatorMutual(),
	)
	client := http.Client{Transport: transport}
	resp, err := client.Get("https://example.com")

The Negotiate enabled transport wraps a standard [http.RoundTripper]. By default
it uses [http.DefaultTransport]. A custom round-tripper can be provided to the
transport using [WithInitiatorRoundTripper].

# Request body handling

For HTTP methods such as POST, PUT, and others that include a request body, the
client must send the full body to the server regardless of the server’s
response code.

Starting with Go 1.8, the http.Request.GetBody method enables supported request
body types to be rewound and resent if the server responds with a 401
Unauthorized challenge.

However, for large request bodies, retransmission can be inefficient.

One way to avoid sending large bodies multiple times is to use the Expect:
100-continue header.

Normal flow:
  - The client sends headers first.
  - If the server responds with 100 Continue, the client sends the body.
  - If the server responds with 401 Unauthorized (or any final status) before
    sending 100 Continue, the client does not send the body.

This approach saves bandwidth when the request is likely to be challenged, but
it depends on correct server implementation of 100-continue semantics.

Why this matters:

  - Under HTTP/1.1 (RFC 9110, §9), if the client sends a request with a
    Content-Length header and no Expect: 100-continue, then the server must
    either read and discard the entire body, or close the connection after
    sending the response.

  - This ensures leftover body bytes do not corrupt the interpretation of the
    next request over the same connection.

With Expect: 100-continue:

  - The body is not sent until the server signals 100 Continue.
  - If the server rejects early, there are no unread body bytes and the
    connection protocol stays clean without draining.

Client behavior:

  - Support for Expect: 100-continue is disabled by default due to
    implementation concerns with some servers.

  - It can be enabled by setting a threshold (in bytes) greater than zero.

    When enabled, the client will add the header to requests that:

  - Do not have opportunistic authentication enabled, and

  - Either have a body size exceeding the threshold, or have a body that is not
    rewindable via GetBody.

  - The optimal threshold depends on factors such as network bandwidth, MTU,
    TLS overhead, and server 100-continue reliability.

The Go [net/http] server forces the connection to close after the reply when
the client requests a 100-continue response.

  - RFC view: If Content-Length is set, the client must send the full body,
    even without 100 Continue.
  - Practical view: Closing avoids reading (and discarding) large unused bodies
    and prevents ambiguity in the TCP stream.
  - Impact: When rejecting requests early (for example, 401 Unauthorized), the
    connection will close, requiring a new one for the retry.

For large request bodies and Negotiate authentication, this is generally
preferable to draining the body.

# Opportunistic authentication

The transport supports opportunistic authentication as described in RFC 4559
§ 4.2 . The client does not wait for the server to respond with a 401 status
code before sending an authentication token. This optimization can reduce round
trips between the client and server, at the cost of initializing the security
context and potentially exposing authentication credentials to the server
unnecessarily.  Opportunistic tokens are never channel bound, so
[ChannelBindingDispositionRequire] cannot be combined with it.

# Servers

[Handler] is a [http.Handler] that performs Negotiate authentication, and
optionally Basic authentication, and then calls the next handler with the
initiator name in the request context.  Use [GetInitiatorName] to retrieve it.

Use Negotiate authentication for a subset of paths:

	acc, err := krb5.NewAcceptorFromFile("/etc/http.keytab")
	...
	negotiator := spnego.NewNegotiator(spnego.WithAcceptor(acc))

	// Use Negotiate authentication for the /foo path
	fooAuth, err := ghttp.NewHandler(negotiator, fooHandler)
	...
	http.Handle("/foo", fooAuth)

	// but not for /bar
	http.HandleFunc("/bar", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Hello, %q", html.EscapeString(r.URL.Path))
	})

	log.Fatal(http.ListenAndServe(":8080", nil))

Use Negotiate authentication for all paths, with a Basic fallback checked
against the KDC:

	h, err := ghttp.NewHandler(negotiator, http.DefaultServeMux,
		ghttp.WithAcceptorBasicValidator(krb5.NewBasicValidator(cfg, "EXAMPLE.COM", nil)),
		ghttp.WithAcceptorMetrics(ghttp.NewMetrics(nil)),
	)
	...
	log.Fatal(http.ListenAndServe(":8080", h))

Only one Negotiate round trip per request is supported.  Kerberos completes in
a single round trip, including mutual authentication.
*/
package http
