// Package scenario models data-driven test scenarios: ordered steps, each
// with a request and an expected outcome.
//
// A scenario file is a JSON object whose members are scenarios:
//
//	{
//	  "globalConfig": {"request": {"baseUri": "http://localhost:8080", "headers": {"X-Tenant": "t1"}}},
//	  "createQuote": {
//	    "testDescription": "create and read a quote",
//	    "steps": {
//	      "create": {"request": {"method": "POST", "endpoint": "/quotes", "body": {"type": "QUICK"}}, "expectedStatusCode": 201},
//	      "read":   {"request": {"method": "GET", "endpoint": "/quotes/$<cache:create:id>"}, "expectedStatusCode": "200"}
//	    }
//	  }
//	}
//
// The optional globalConfig member is merged into every step of every
// scenario in the file, filling only the fields a step leaves unset.
package scenario
