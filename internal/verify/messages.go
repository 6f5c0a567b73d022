package verify

const (
	msgRequestName = "To send messages in the group, we require the following:\n" +
		"(1) Your full name\n" +
		"(2) Whether or not you're a UNSW student\n" +
		"  (2a) If yes, your UNSW-issued zID\n" +
		"  (2b) If not, your email address\n" +
		"  (3b) A photo of your government-issued ID\n" +
		"\n" +
		"The information you share is only accessible by the administrators.\n" +
		"-----\n" +
		"(1) What is your full name as it appears on your government-issued ID?\n" +
		"You can restart this verification process at any time by typing /restart."

	msgRequestUNSW  = "(2) Are you a UNSW student? Please type y or n."
	msgRequestZID   = "(2a) What is your zID?"
	msgRequestEmail = "(2b) What is your email address?"

	msgRequestCode = "Please enter the code sent to your email. If you are a UNSW student, " +
		"this is your zID student email. Please check your spam folder if you don't see it.\n" +
		"You can request another email by typing /resend."

	msgRequestID      = "(3b) Please send a message with a photo of your government-issued ID attached."
	msgIDForwarded    = "Your attachment(s) have been forwarded to the administrators. Please wait."
	msgAwaitingReview = "Your ID is being reviewed by the administrators. Please wait."

	msgNameInvalid   = "Name must be between 1 and 500 characters. Please try again."
	msgYesNoInvalid  = "Please type y or n."
	msgZIDInvalid    = "Your zID must match the following format: zXXXXXXX. Please try again."
	msgEmailInvalid  = "That is not a valid email address. Please try again."
	msgCodeInvalid   = "That was not the correct code. Please try again.\nYou can request another email by typing /resend."
	msgIDMissing     = "You must attach at least one image. Please try again."
	msgTooManyEmails = "You have requested too many emails. Please contact an administrator to continue verification."

	msgEmailFailed = "Oops! Something went wrong while attempting to send you an email. " +
		"Please ensure that your details have been entered correctly."

	msgNothingToResend = "You have not been sent a code yet."

	msgAlreadyVerifying = "You are already undergoing the verification process. To restart, type /restart."
	msgNotVerifying     = "You are not currently being verified."
	msgAlreadyVerified  = "You are already verified."

	msgWelcome          = "You are now verified. Welcome to the server!"
	msgWelcomeBack      = "Our records show you were verified in the past. You have been granted the rank once again. Welcome back to the server!"
	msgAttemptsUnlocked = "An administrator has reset your email limit. You may continue verification."

	msgUserNotVerifying   = "That user is not currently being verified."
	msgUserVerified       = "That user is already verified."
	msgUserNotAwaiting    = "That user is not awaiting approval."
	msgUserNotEmailing    = "That user is not at an email step."
	msgForwardMissing     = "Could not find the previous message containing attachments! Perhaps it was deleted?"
	msgNoPending          = "No members currently awaiting approval."
	msgReasonRequired     = "A reason is required to reject a request."
	msgManualZIDInvalid   = "That is not a valid zID."
	msgManualEmailInvalid = "That is not a valid email address."
	msgManualNameInvalid  = "Name must be between 1 and 500 characters."
)
